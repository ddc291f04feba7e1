// Package relay correlates messages forwarded to the staff group with the
// users who sent them, so a staff reply can be routed back without staff
// and user ever sharing an identifier.
//
// The table is in-memory and volatile: correlations do not survive a
// restart, which is acceptable because they are logically stale once the
// user's session ends. Capacity is bounded with oldest-first eviction.
package relay
