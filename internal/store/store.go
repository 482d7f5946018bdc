// Package store holds the partition storage gateway: one PartitionStore per
// durable record set (accepted, rejected).
package store

import "context"

// Record is the flat field-to-string mapping persisted per transaction.
type Record map[string]string

// PartitionStore is the contract the pipeline consumes. Clear is idempotent;
// Write upserts, overwriting any existing value under key; ReadAll returns an
// empty map (never an error) when the partition holds nothing.
type PartitionStore interface {
	Clear(ctx context.Context) error
	Write(ctx context.Context, key string, rec Record) error
	ReadAll(ctx context.Context) (map[string]Record, error)
}
