// Per-account trust state: cumulative policy violation count, and a terminal suspension flag.
//
// [Ledger] is the only code path which mutates trust state. Persistence is pluggable through [Store]; every implementation must apply an increment atomically per account, so that concurrent violations recorded from different call sites (publishing, chat) are never lost.
package trust
