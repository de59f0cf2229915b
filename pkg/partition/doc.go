/*
Package partition abstracts a physical partition of the location-history
store and the process-wide registry of partition handles.

# Capability abstraction

A Partition is one independently queryable collection of location records
sharing a derived partition id. The Backend interface covers physical
provisioning so the same engine logic can target different backends:

  - memory: in-memory partitions for tests and development
  - badgerdb: BadgerDB-backed partitions for production

Provisioning a partition installs its index set: a geospatial index on
position, a compound (subject, timestamp descending) index, a TTL expiry
scaled to the tier's archive retention, and for elevated-tier partitions an
additional (subject, source, timestamp) index. Backend.Create is
create-if-absent and safe to race: concurrent first callers may both call
it and exactly one physical partition results.

# Registry

The Registry owns the in-memory map from partition id to handle for the
process lifetime. Handles are created at most once per id per process and
shared by all callers. The map is never persisted; after a restart it is
rebuilt lazily as partitions are touched again (Lookup attaches to
partitions that already exist physically, without creating anything).

The registry is an explicit, injected instance rather than a package-level
singleton, so tests get isolation from fresh instances. The map is
append-only; handles are never evicted. That is an accepted memory-growth
tradeoff for the current design.
*/
package partition
