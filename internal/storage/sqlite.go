// Package storage is the SQLite cache behind the configuration lifecycle:
// one parent row per document plus normalized child rows for the editable
// data-context sections.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kheast/cb-config/internal/records"
)

// Store wraps a SQLite database with methods for configurations, their child
// records, and the audit log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "cbconfig.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		// Cascade deletes of child rows depend on this.
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Configurations ---

// CreateConfiguration inserts a new parent record and assigns its filename
// from the generated id, all in one transaction. Ids are monotonic and never
// reused, so neither are filenames. A name collision returns ErrConflict.
func (s *Store) CreateConfiguration(c Configuration) (Configuration, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Configuration{}, fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO configurations (name, description, author, format, state, config_json, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.Author, c.Format, c.State, c.ConfigJSON,
		c.Created.UTC().Format(time.RFC3339), c.Modified.UTC().Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return Configuration{}, fmt.Errorf("configuration name %q: %w", c.Name, ErrConflict)
	}
	if err != nil {
		return Configuration{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Configuration{}, fmt.Errorf("reading inserted id: %w", err)
	}

	filename := fmt.Sprintf("%06d.%s", id, c.Format)
	if _, err := tx.Exec(`UPDATE configurations SET filename = ? WHERE id = ?`, filename, id); err != nil {
		return Configuration{}, fmt.Errorf("assigning filename: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Configuration{}, fmt.Errorf("committing create: %w", err)
	}

	c.ID = id
	c.Filename = filename
	return c, nil
}

const configColumns = `id, filename, name, description, author, format, state, config_json, created, modified`

func scanConfiguration(row interface{ Scan(...any) error }) (Configuration, error) {
	var c Configuration
	var created, modified string
	err := row.Scan(&c.ID, &c.Filename, &c.Name, &c.Description, &c.Author,
		&c.Format, &c.State, &c.ConfigJSON, &created, &modified)
	if err == sql.ErrNoRows {
		return Configuration{}, ErrNotFound
	}
	if err != nil {
		return Configuration{}, err
	}
	if c.Created, err = time.Parse(time.RFC3339, created); err != nil {
		return Configuration{}, fmt.Errorf("parsing created: %w", err)
	}
	if c.Modified, err = time.Parse(time.RFC3339, modified); err != nil {
		return Configuration{}, fmt.Errorf("parsing modified: %w", err)
	}
	return c, nil
}

func (s *Store) GetConfiguration(id int64) (Configuration, error) {
	return scanConfiguration(s.db.QueryRow(
		`SELECT `+configColumns+` FROM configurations WHERE id = ?`, id))
}

func (s *Store) GetConfigurationByName(name string) (Configuration, error) {
	return scanConfiguration(s.db.QueryRow(
		`SELECT `+configColumns+` FROM configurations WHERE name = ?`, name))
}

// ListConfigurations returns all parent records ordered by id ascending.
func (s *Store) ListConfigurations() ([]Configuration, error) {
	rows, err := s.db.Query(`SELECT ` + configColumns + ` FROM configurations ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Configuration
	for rows.Next() {
		c, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpdateConfiguration rewrites the mutable columns of an existing record.
// Filename, id, and created are immutable after insert.
func (s *Store) UpdateConfiguration(c Configuration) error {
	res, err := s.db.Exec(`
		UPDATE configurations
		SET name = ?, description = ?, author = ?, format = ?, state = ?, config_json = ?, modified = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Author, c.Format, c.State, c.ConfigJSON,
		c.Modified.UTC().Format(time.RFC3339), c.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("configuration name %q: %w", c.Name, ErrConflict)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConfiguration removes the parent record; child rows cascade.
func (s *Store) DeleteConfiguration(id int64) error {
	res, err := s.db.Exec(`DELETE FROM configurations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// NameExists reports whether another configuration (excluding excludeID)
// already uses name.
func (s *Store) NameExists(name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM configurations WHERE name = ? AND id != ?`,
		name, excludeID,
	).Scan(&count)
	return count > 0, err
}

// --- Child records ---

// ReplaceChildren swaps the full child-record set of a configuration in one
// transaction. Duplicate terms or field names return ErrConflict.
func (s *Store) ReplaceChildren(configID int64, c records.Children) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning children transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"datasources", "business_terms", "field_mappings"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE config_id = ?`, configID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, ds := range c.Datasources {
		_, err := tx.Exec(`
			INSERT INTO datasources (config_id, name, portal_datasource_id, description, primary_entity, refresh_frequency)
			VALUES (?, ?, ?, ?, ?, ?)`,
			configID, ds.Name, ds.PortalDatasourceID, ds.Description, ds.PrimaryEntity, ds.RefreshFrequency,
		)
		if err != nil {
			return fmt.Errorf("inserting datasource %q: %w", ds.Name, err)
		}
	}

	for _, term := range c.BusinessTerms {
		_, err := tx.Exec(`
			INSERT INTO business_terms (config_id, term, definition) VALUES (?, ?, ?)`,
			configID, term.Term, term.Definition,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("business term %q: %w", term.Term, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting business term %q: %w", term.Term, err)
		}
	}

	for _, m := range c.FieldMappings {
		_, err := tx.Exec(`
			INSERT INTO field_mappings (config_id, field_name, business_name, description, format, valid_values)
			VALUES (?, ?, ?, ?, ?, ?)`,
			configID, m.FieldName, m.BusinessName, m.Description, m.Format, m.ValidValues,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("field mapping %q: %w", m.FieldName, ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting field mapping %q: %w", m.FieldName, err)
		}
	}

	return tx.Commit()
}

// GetChildren reads the child records of a configuration. Datasources come
// back in insertion order, the mapping-backed sections key-sorted.
func (s *Store) GetChildren(configID int64) (records.Children, error) {
	var c records.Children

	rows, err := s.db.Query(`
		SELECT name, portal_datasource_id, description, primary_entity, refresh_frequency
		FROM datasources WHERE config_id = ? ORDER BY id ASC`, configID)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var ds records.DatasourceRecord
		if err := rows.Scan(&ds.Name, &ds.PortalDatasourceID, &ds.Description, &ds.PrimaryEntity, &ds.RefreshFrequency); err != nil {
			return c, err
		}
		c.Datasources = append(c.Datasources, ds)
	}
	if err := rows.Err(); err != nil {
		return c, err
	}

	termRows, err := s.db.Query(`
		SELECT term, definition FROM business_terms WHERE config_id = ? ORDER BY term ASC`, configID)
	if err != nil {
		return c, err
	}
	defer termRows.Close()
	for termRows.Next() {
		var t records.BusinessTermRecord
		if err := termRows.Scan(&t.Term, &t.Definition); err != nil {
			return c, err
		}
		c.BusinessTerms = append(c.BusinessTerms, t)
	}
	if err := termRows.Err(); err != nil {
		return c, err
	}

	mappingRows, err := s.db.Query(`
		SELECT field_name, business_name, description, format, valid_values
		FROM field_mappings WHERE config_id = ? ORDER BY field_name ASC`, configID)
	if err != nil {
		return c, err
	}
	defer mappingRows.Close()
	for mappingRows.Next() {
		var m records.FieldMappingRecord
		if err := mappingRows.Scan(&m.FieldName, &m.BusinessName, &m.Description, &m.Format, &m.ValidValues); err != nil {
			return c, err
		}
		c.FieldMappings = append(c.FieldMappings, m)
	}
	return c, mappingRows.Err()
}

// --- Audit log ---

// AppendAudit records one lifecycle action. A missing id is generated.
func (s *Store) AppendAudit(e AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO audit_log (id, config_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ConfigID, e.Action, e.Detail, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListAudit returns the audit trail for one configuration, newest first.
func (s *Store) ListAudit(configID int64, limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, config_id, action, detail, created_at
		FROM audit_log WHERE config_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, configID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ConfigID, &e.Action, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
