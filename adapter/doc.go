// Package adapter implements the channel adapter: it turns raw inbound
// requests into middleware-piped turns, delivers outbound activities
// through connector clients, resumes conversations proactively, and runs
// the background sign-in token poller.
package adapter
