// Package moderation implements the staff-tier operations of desk-gateway:
// admin roster checks and mutation, blocking with conflict rules, user
// lookup, and the broadcast fan-out.
//
// # Authorization
//
// Two tiers exist: standard and main. Reads are available to either tier;
// roster mutation is restricted to main at the dispatch layer. Exactly one
// main admin exists, seeded from configuration at startup, and it can never
// be removed or blocked.
//
// # Error taxonomy
//
// Conflicts (ErrAlreadyAdmin, ErrAlreadyBlocked, ErrNotBlocked,
// ErrNotAnAdmin, ErrProtectedMainAdmin, ErrTargetIsAdmin) are expected and
// reported without mutating anything. Per-recipient delivery failures
// during a broadcast are counted and logged, never fatal to the batch.
package moderation
