/*
Package store implements the time- and user-sharded location-history
engine.

Writes flow one way: a record is validated, its subject's tier classified,
its partition id derived, the partition resolved (provisioned on first
touch), and the record durably appended. Reads fan out: the deriver
enumerates every partition a time range could span, each registered
partition is queried concurrently with the same limit as the final result,
and the partial sequences are merged, re-sorted, and truncated after the
merge.

The store is consumed in-process; it exposes no wire protocol. Its two
collaborator-facing operations are RecordLocation and QueryHistory, plus
EraseSubject for data-subject deletion.

Failure semantics follow a strict taxonomy: tier-classification failures
fall back to the standard tier and are never surfaced; provisioning races
retry transparently; a durable-append failure is the caller's to handle;
per-partition query failures degrade to empty contributions and only a
total failure surfaces. See the package errors for the exported types.
*/
package store
