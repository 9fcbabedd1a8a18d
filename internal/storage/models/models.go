// Package models holds the row types of the storage tables.
package models

import "time"

// Document is a persisted state document.
type Document struct {
	Key      string
	Version  int
	Payload  []byte // JSON, as produced by storage.EncodeDocument
	Checksum string // hex SHA-256 of Payload
	SavedAt  time.Time
}

// DocumentRevision is an earlier copy of a document kept for recovery.
type DocumentRevision struct {
	ID       int64
	Key      string
	Version  int
	Payload  []byte
	Checksum string
	SavedAt  time.Time
}
