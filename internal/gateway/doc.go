// Package gateway dispatches inbound transport events.
//
// The Dispatcher is the single entry point for everything the transport
// delivers. For each event it:
//
//  1. Takes the sender's dispatch lock, so events from one identity are
//     handled strictly one at a time.
//  2. Consults the block guard. Blocked identities get the fixed refusal
//     and nothing else runs.
//  3. Hands the event to the conversation engine. Engine errors degrade to
//     a generic reply; the dispatch loop never dies on a single event.
//
// Events for different identities dispatch concurrently.
package gateway
