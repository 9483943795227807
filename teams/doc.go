// Package teams layers Microsoft Teams semantics on the base activity
// handler: the invoke name dispatch table, channel lifecycle events, and
// roster-enriched member accounts.
package teams
