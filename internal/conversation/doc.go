// Package conversation implements the per-user state machine behind the
// gateway.
//
// # Overview
//
// Every inbound event is dispatched to exactly one handler, selected by the
// sender's persisted conversation state. The state and its scratch data bag
// live in the store, so a process restart resumes each user exactly where
// they left off.
//
// # States
//
// The state set is fixed at build time and covers the user flows plus the
// staff prompt states:
//
//   - Registration: awaiting_name -> awaiting_phone
//   - Request wizard: awaiting_application_choice -> awaiting_address ->
//     awaiting_media -> awaiting_description
//   - Contact: awaiting_contact_choice -> awaiting_call_phone_confirmation
//     or in_live_chat
//   - Settings: awaiting_settings_choice -> awaiting_new_name /
//     awaiting_new_phone
//   - Staff prompts: broadcast, user info, block/unblock, promote/demote,
//     and reply composition
//
// # Back navigation
//
// Each non-idle state has a single predecessor in a fixed table. The back
// action re-renders the predecessor's entry prompt; from a top-level state
// it returns to the main menu. Live chat is the exception and ends only via
// its explicit end action.
//
// # Input discipline
//
// Invalid input never advances or corrupts a state: handlers re-prompt and
// stay put, so repeating the same bad input is idempotent. Inline action
// tokens form a closed set and free text is never interpreted as an action.
package conversation
