package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update violates a uniqueness
// constraint (configuration name, filename, or a child-record key).
var ErrConflict = errors.New("conflict")

// Configuration states. A draft has a parent row but no canonical file yet;
// saving writes the file. Deletion removes the row, so there is no stored
// deleted state.
const (
	StateDraft = "draft"
	StateSaved = "saved"
)

// Configuration is the cached parent record for one document: the indexed
// top-level fields plus the complete document as JSON text. The canonical
// copy is the file named by Filename; the row exists for listing, uniqueness
// enforcement, and child-record editing.
type Configuration struct {
	ID          int64
	Filename    string
	Name        string
	Description string
	Author      string
	Format      string // file encoding, "json" or "yaml"
	State       string
	ConfigJSON  string
	Created     time.Time
	Modified    time.Time
}

// AuditEntry records one lifecycle action against a configuration. ConfigID
// is kept after the configuration is deleted so history survives.
type AuditEntry struct {
	ID        string
	ConfigID  int64
	Action    string
	Detail    string
	CreatedAt time.Time
}
