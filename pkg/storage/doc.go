/*
Package storage implements Adapter, the sync engine's key-value contract,
against go.etcd.io/bbolt — continuing the teacher's own storage engine
choice and its db.Update/db.View transaction shape, retargeted from
entity-CRUD buckets to the three flat key-value stores spec.md §6
describes.

# Architecture

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              BoltDB (one database file)      │          │
	│  │  - Format: B+tree with MVCC                 │          │
	│  │  - Transactions: ACID with fsync            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         One bucket per BoltAdapter           │          │
	│  │  ┌────────────────────────────┐             │          │
	│  │  │ server  — one key per leaf, │             │          │
	│  │  │          "path/as/slash/"   │             │          │
	│  │  │ user    — key is writeId    │             │          │
	│  │  │ query   — "query/"+id and   │             │          │
	│  │  │           "key/"+id+"/"+key │             │          │
	│  │  └────────────────────────────┘             │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

Each BoltAdapter is a thin, generic get/set/prefix-scan surface over one
bucket; it knows nothing about the server cache / user write / tracked
query key layouts above — those layouts live in pkg/persistence, which is
the only caller that interprets keys.

# Reference counting

Three stores ("server", "user", "query") share one underlying *bolt.DB.
BoltDB.Store opens (creating if needed) a named bucket and hands back a
BoltAdapter bound to it; each BoltAdapter.Close releases one reference,
and the underlying database closes once every store opened against it has
been closed — matching spec.md §5's "the underlying database is closed
when all its stores are closed".

# Atomicity

WriteBatch queues Set/Remove/RemovePrefixed calls and executes them all
inside a single bolt.Tx on Run, so a batch either lands in full or not at
all, satisfying spec.md §5's "Run() must be atomic" requirement for free
from the underlying engine rather than hand-rolled rollback logic.
*/
package storage
