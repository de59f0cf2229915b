package config

import "time"

// Storage defaults
const (
	DefaultMaxMemoryMB  = 64
	DefaultMaxStorageGB = 4
)

// Query timeouts and defaults
const (
	QueryTimeout        = 30 * time.Second
	DefaultQueryLimit   = 100
	MaxQueryLimit       = 1000
	DefaultMaxRangeDays = 366
)

// Write path timeouts
const (
	WriteTimeout           = 5 * time.Second
	DirectoryLookupTimeout = 2 * time.Second
)

// Maintenance intervals
const (
	RetentionSweepInterval = 1 * time.Hour
	BadgerGCInterval       = 10 * time.Minute
)

// Erasure limits
const (
	ErasureTimeout = 60 * time.Second
)
