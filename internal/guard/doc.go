// Package guard gates every inbound event on the sender's block status.
// It runs before state dispatch so blocked identities get a fixed reply
// and nothing else, regardless of event kind.
package guard
