// Package calendar provides a client for interacting with the Google Calendar API.
//
// This package covers the calendar surface a booking assistant needs:
// listing and creating events, querying free/busy information across
// calendars, and fetching merged busy intervals ready for availability
// reconciliation.
//
// The client supports multi-account OAuth2 authentication as well as
// service-account credentials for headless deployments.
//
// Example usage:
//
//	ctx := context.Background()
//	client, err := calendar.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// List upcoming events
//	events, err := client.ListEvents("primary", time.Now(), time.Now().AddDate(0, 0, 7), "")
//	if err != nil {
//	    log.Fatal(err)
//	}
package calendar
