// Package store implements the chatstore repositories on top of an embedded
// ordered key-value environment (bbolt). One environment holds eight named
// partitions:
//
//	sessions            session id        -> session record
//	messages            message id        -> message record
//	message_by_session  session:ts:id     -> message id
//	message_by_agent    agent:ts:id       -> message id
//	shared_contexts     context id        -> context record
//	context_by_session  session:ts:id     -> context id
//	tasks               task id           -> task record
//	task_agents         t:task:agent / a:agent:task -> counterpart id
//
// Primary partitions are keyed directly by entity id so point lookups never
// scan; chronological orderings live exclusively in the index partitions,
// written in the same transaction as every primary record. Values are a
// compact msgpack encoding of the record fields.
//
// The Env type owns the environment lifecycle including lazy initialization
// and corruption-recovery fallback; repositories receive the Env at
// construction and never touch process-global state.
package store
