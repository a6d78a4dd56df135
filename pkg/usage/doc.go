// Package usage records per-call token consumption in a SQLite ledger.
//
// Every completed upstream call — streaming or buffered — produces one
// Entry: which model the client asked for, which deployment served it,
// the serving account, and the accumulated prompt/completion token
// counts. The ledger backs capacity planning and per-account accounting;
// it is written on the request path but never read there, so a slow disk
// degrades bookkeeping, not latency-sensitive work.
//
// Retention is enforced by a cron-scheduled pruner that deletes rows
// older than the configured number of days.
package usage
