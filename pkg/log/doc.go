/*
Package log provides structured logging for the sync engine using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and helper functions
for common logging patterns. All logs include timestamps and support
filtering by severity for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("synctree")                │          │
	│  │  - WithPath("/rooms/42/messages")           │          │
	│  │  - WithQuery(query.Key())                   │          │
	│  │  - WithWriteID(writeID)                     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  JSON Format:                               │          │
	│  │  {"level":"warn","component":"persistence",  │          │
	│  │   "path":"/rooms/42","message":"store       │          │
	│  │   read failed, falling back to empty"}       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Log Levels

  - Debug: per-operation tracing — SyncTree's listen start and
    establishment and BoltAdapter's committed batches, each tagged with a
    batch id.
  - Info, Error: available on Logger; no engine package logs at these
    levels.
  - Warn: recoverable failures after which the core carries on
    best-effort — a failed store read/write or pruning pass
    (persistence), a failed storage batch (storage), a failed listen whose
    registration is then removed (synctree).
  - Fatal: log.Fatal logs and exits the process; no engine package calls
    it. Invariant violations in SyncTree (a tagged operation reaching a
    sync point with no matching view, a non-increasing write id) panic
    with a diagnostic instead. A prune under a kept subtree is returned as
    an error from the pruning pass, which persistence logs at Warn.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	syncLog := log.WithComponent("synctree")
	syncLog.Info().Msg("sync point created")

	pathLog := log.WithPath(path.String())
	pathLog.Warn().Err(err).Msg("server cache read failed, returning empty")

	writeLog := log.WithWriteID(writeID)
	writeLog.Debug().Msg("user write acknowledged")

# Design Patterns

Global logger, initialized once, with child loggers carrying the
operation's path/query/write-id context rather than repeating fields at
every call site — the same pattern the rest of this module uses for
zerolog.Logger fields in general.

Never log full Node values at Info or above: a synced subtree can be
arbitrarily large and may contain application data the operator did not
intend to ship to a log sink. Log the Path and a Hash() instead.
*/
package log
