// Package observability captures, reads, and queries swarm session events.
// Events are persisted as structured JSON Lines (JSONL), one append-only
// log per session, and aggregations are derived on-demand from the log.
package observability
