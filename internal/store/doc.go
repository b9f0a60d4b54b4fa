// Package store provides SQLite-backed durable storage for the dvgov ledger.
//
// The store holds two kinds of data:
//   - Contract state: native balances, token balances and vote checkpoints,
//     governor settings, proposals and receipts, timelock roles and
//     operations, treasury custody records
//   - The call log: calls, their single outcome, and the events they emitted
//
// # Transactions
//
// Every state accessor lives on Tx. The ledger opens one Tx per submitted
// call and either commits it or rolls it back, so a rejected call never
// leaves partial state behind. The connection pool is capped at one
// connection: SQLite has a single writer and the ledger is single-writer
// by construction.
//
// # Ordering
//
// All ordering uses seq or block INTEGER columns, never timestamps.
// Queries that return lists include an explicit ORDER BY so replays read
// identical results.
//
// # Encoding
//
// Amounts are decimal TEXT, addresses and hashes are 0x hex TEXT, and
// structured values (args, results, batches, event fields) are canonical
// JSON produced by ir.MarshalCanonical.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
