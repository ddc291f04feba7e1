// Package transport defines the boundary between desk-gateway's core and
// the chat gateway that delivers inbound events and accepts outbound sends.
//
// The core never talks to a chat network directly. It consumes Event values
// and produces Outbound values through the Sender interface; concrete
// adapters (see the matrix subpackage) translate both to a real protocol.
//
// Inline actions are a closed token set. An adapter renders the tokens
// attached to an Outbound as buttons and reports presses back as Event
// values with Action set. Free text is delivered as-is and is never
// promoted to an action token by the adapter.
package transport
