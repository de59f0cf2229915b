/*
Package shard derives partition identifiers for location records.

# Strategies

The deriver supports three sharding strategies, selected by configuration:

  - time: one partition per time bucket (daily/weekly/monthly).
    Partition names look like "location_history_202401".
  - userhash: a fixed number of partitions regardless of subject
    cardinality. The subject id is hashed (xxhash64) and reduced modulo
    the shard count: "location_history_shard_17". Deterministic and
    stable across restarts.
  - hybrid: a time bucket combined with a tier-dependent user suffix.
    Elevated subjects get a dedicated partition per subject
    ("location_history_202401_user_s1"), which makes full-partition
    erasure possible. Premium subjects hash into a small shard count,
    standard subjects into a larger one.

All derivation is pure: the same (subject, timestamp, tier) always maps to
the same partition id, in this process and the next. Partition names are
derived state, never hand-authored; changing the derivation orphans old
partitions and requires migration or dual-read.

# Range enumeration

RangeIDs enumerates every partition a [start, end] query could touch by
stepping bucket boundaries across the range. Under the userhash strategy a
subject's whole history lives in one partition, so the result is a single
id. Under time-inclusive strategies each bucket in the range yields one id.
*/
package shard
