// Package matrix implements the transport boundary on Matrix.
//
// Identities: Matrix user IDs are strings, the gateway's identities are
// numeric. The adapter derives a stable int64 per user by hashing the
// Matrix user ID, so the same user keeps the same identity across restarts.
// Delivery rooms are learned as users message the gateway; an identity that
// has never messaged this process is undeliverable until it does.
//
// Actions: Matrix has no inline buttons, so action tokens render as a
// numbered option list in the message body. A reply consisting of the
// option number, the token, or the label resolves back to the token.
//
// Staff room: relayed user messages land in the configured staff room with
// a reply hint. A native Matrix reply there is delivered as a reply press
// followed by the reply text; any other staff-room chatter is ignored.
package matrix
