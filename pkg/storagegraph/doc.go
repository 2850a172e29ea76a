/*
Package storagegraph builds and validates the typed dependency graph over a
host configuration's `storage` section (§4.1 of the spec this module
implements).

# Architecture

storagegraph is a pure, in-memory, synchronous validation layer — it has no
side effects and touches no block devices. It consumes a
types.HostConfiguration (its storage section, plus the datastore path for
the check that keeps the datastore off an A/B volume) and either returns a Graph or a structured, typed error identifying exactly
which rule failed and on which ids.

	┌─────────────────────────────────────────────────────────┐
	│                       Build(cfg)                         │
	│                                                            │
	│  1. Insert block-device + filesystem + mount-point nodes  │
	│     (reject duplicate ids, duplicate/non-absolute mounts) │
	│  2. For each referrer, validate + add one typed edge per  │
	│     reference (existence, kind, cardinality, distinctness)│
	│  3. Cross-edge checks: sharing compatibility, dependency- │
	│     kind homogeneity, size/type homogeneity, RAID level,  │
	│     verity pairing, filesystem-on-verity constraints      │
	│                                                            │
	│                     Graph (DAG, arena + edges)             │
	└─────────────────────────────────────────────────────────┘

Nodes live in a single arena (Graph.nodes), addressed by NodeID (the user
id from the configuration for all top-level entities, plus synthesized ids
for filesystems and mount points). Edges are a flat, typed list rather than pointers
embedded in the nodes, matching the teacher repo's (cuemby-warren)
preference for maps-of-entities-by-id over pointer graphs — this also makes
Graph trivially comparable for the determinism property in §8 (two graphs
built from identical storage sections are observably equal).

# Queries

Once built, a Graph answers the structural questions the engine needs
without re-walking the configuration: RootFilesystemIsVerity,
HasABCapabilities, BlockDevicePath, and iteration over partitions,
filesystems and mount points.
*/
package storagegraph
