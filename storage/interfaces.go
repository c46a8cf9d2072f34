package storage

import "ksl-notify/models"

// ArchiveWriter persists reported listings to an audit sink. The archive is
// write-only: seen-state deduplication stays in memory and is never
// reconstructed from a sink.
type ArchiveWriter interface {
	Archive(query string, listings []models.Listing) error
	Close() error
}
