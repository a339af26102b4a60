// Package agent implements a conversational booking assistant on top of
// the Gemini API.
//
// The agent exposes the planner's capabilities (check availability,
// propose alternative slots, book an event) to the model as function
// declarations and runs a bounded tool-calling loop: the model may call
// tools up to a fixed number of rounds per user message before it must
// answer in text. Conversation history is kept short so long sessions do
// not grow the prompt without bound.
//
// Tool execution is behind the Dispatcher interface; the production
// dispatcher delegates to a booking.Planner, and tests substitute a
// scripted one.
package agent
