// Package lifecycle orchestrates the configuration record lifecycle: draft
// and saved states, filename assignment, name uniqueness, child-record
// reconciliation, and the write-through to canonical files that keeps the
// SQLite cache and the working directory consistent.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kheast/cb-config/internal/codec"
	"github.com/kheast/cb-config/internal/document"
	"github.com/kheast/cb-config/internal/records"
	"github.com/kheast/cb-config/internal/schema"
	"github.com/kheast/cb-config/internal/storage"
)

// Manager coordinates validation, the relational cache, and canonical files.
// All operations are synchronous; the store serializes concurrent writers.
type Manager struct {
	store *storage.Store
	dir   string
}

// NewManager creates a manager writing canonical files under
// settings.WorkingDir, creating the directory if needed.
func NewManager(store *storage.Store, settings Settings) (*Manager, error) {
	if err := os.MkdirAll(settings.WorkingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	return &Manager{store: store, dir: settings.WorkingDir}, nil
}

func (m *Manager) filePath(c storage.Configuration) string {
	return filepath.Join(m.dir, c.Filename)
}

// Create validates a complete document and persists it: record first, then
// the canonical file. If the file write fails the new record is removed
// again, so a brand-new configuration never exists in only one place.
func (m *Manager) Create(raw map[string]any, format codec.Format) (storage.Configuration, error) {
	doc, err := document.FromMap(raw)
	if err != nil {
		return storage.Configuration{}, err
	}

	rec, err := m.insertRecord(doc.Config, format, storage.StateSaved)
	if err != nil {
		return storage.Configuration{}, err
	}

	if err := m.writeFile(rec, doc); err != nil {
		if delErr := m.store.DeleteConfiguration(rec.ID); delErr != nil {
			log.Error().Err(delErr).Int64("id", rec.ID).
				Msg("compensating delete failed after file write error")
		}
		return storage.Configuration{}, err
	}

	if err := m.store.ReplaceChildren(rec.ID, records.Explode(doc.Config)); err != nil {
		return storage.Configuration{}, fmt.Errorf("projecting child records: %w", err)
	}

	m.audit(rec.ID, "create", rec.Name)
	return rec, nil
}

// CreateDraft persists a parent record without writing a file, validating
// with a placeholder datasource when none are attached yet. SaveChildren
// completes the two-phase flow.
func (m *Manager) CreateDraft(raw map[string]any, format codec.Format) (storage.Configuration, error) {
	cfg, err := schema.Validate(withPlaceholder(raw))
	if err != nil {
		return storage.Configuration{}, err
	}

	rec, err := m.insertRecord(cfg, format, storage.StateDraft)
	if err != nil {
		return storage.Configuration{}, err
	}

	m.audit(rec.ID, "create_draft", rec.Name)
	return rec, nil
}

// SaveChildren reconciles child records into a configuration's document,
// revalidates without placeholders, and writes record, children, and file.
// This is the transition that turns a draft into a saved configuration.
// Duplicate child keys are rejected before anything is written; the unique
// indexes would catch them on insert, but only after the parent record had
// already committed the reconciled document.
func (m *Manager) SaveChildren(id int64, children records.Children) (storage.Configuration, error) {
	if err := checkChildKeys(children); err != nil {
		return storage.Configuration{}, err
	}

	rec, err := m.store.GetConfiguration(id)
	if err != nil {
		return storage.Configuration{}, err
	}

	cfg, err := m.decode(rec)
	if err != nil {
		return storage.Configuration{}, err
	}

	records.Flatten(children, cfg)
	cfg.Metadata.Modified = schema.NewTimestamp(time.Now())

	doc, err := revalidate(cfg)
	if err != nil {
		return storage.Configuration{}, err
	}

	updated, err := m.updateRecord(rec, doc, storage.StateSaved)
	if err != nil {
		return storage.Configuration{}, err
	}

	if err := m.store.ReplaceChildren(id, children); err != nil {
		return storage.Configuration{}, err
	}

	if err := m.writeFile(updated, doc); err != nil {
		log.Warn().Err(err).Int64("id", id).
			Msg("record updated but canonical file write failed")
		return storage.Configuration{}, err
	}

	m.audit(id, "save_children", updated.Name)
	return updated, nil
}

// Update replaces a configuration's document wholesale: full validation,
// child reprojection, and a file rewrite. A file-write failure is reported
// but the committed record update is kept; the caller sees a FileError and
// should treat the file as stale.
func (m *Manager) Update(id int64, raw map[string]any) (storage.Configuration, error) {
	updated, err := m.replaceDocument(id, raw)
	if err != nil {
		return storage.Configuration{}, err
	}

	m.audit(id, "update", updated.Name)
	return updated, nil
}

// replaceDocument is the shared body of Update and Rename: validate, commit
// the record, reproject children, rewrite the file. Auditing is left to the
// caller so each operation appends exactly one entry.
func (m *Manager) replaceDocument(id int64, raw map[string]any) (storage.Configuration, error) {
	rec, err := m.store.GetConfiguration(id)
	if err != nil {
		return storage.Configuration{}, err
	}

	doc, err := document.FromMap(raw)
	if err != nil {
		return storage.Configuration{}, err
	}
	doc.Config.Metadata.Modified = schema.NewTimestamp(time.Now())

	updated, err := m.updateRecord(rec, doc, storage.StateSaved)
	if err != nil {
		return storage.Configuration{}, err
	}

	if err := m.store.ReplaceChildren(id, records.Explode(doc.Config)); err != nil {
		return storage.Configuration{}, err
	}

	if err := m.writeFile(updated, doc); err != nil {
		log.Warn().Err(err).Int64("id", id).
			Msg("record updated but canonical file write failed")
		return storage.Configuration{}, err
	}

	return updated, nil
}

// Rename changes metadata.name, enforcing global uniqueness against all
// other configurations. Saved configurations get a full update pass; drafts
// only touch the record.
func (m *Manager) Rename(id int64, newName string) (storage.Configuration, error) {
	rec, err := m.store.GetConfiguration(id)
	if err != nil {
		return storage.Configuration{}, err
	}

	taken, err := m.store.NameExists(newName, id)
	if err != nil {
		return storage.Configuration{}, err
	}
	if taken {
		return storage.Configuration{}, fmt.Errorf("configuration name %q: %w", newName, storage.ErrConflict)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &raw); err != nil {
		return storage.Configuration{}, fmt.Errorf("decoding stored document: %w", err)
	}
	meta, ok := raw["metadata"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		raw["metadata"] = meta
	}
	meta["name"] = newName

	if rec.State == storage.StateDraft {
		cfg, err := schema.Validate(withPlaceholder(raw))
		if err != nil {
			return storage.Configuration{}, err
		}
		text, err := codec.Serialize(cfg, codec.FormatJSON)
		if err != nil {
			return storage.Configuration{}, err
		}
		rec.Name = newName
		rec.ConfigJSON = text
		rec.Modified = time.Now()
		if err := m.store.UpdateConfiguration(rec); err != nil {
			return storage.Configuration{}, err
		}
		m.audit(id, "rename", newName)
		return m.store.GetConfiguration(id)
	}

	updated, err := m.replaceDocument(id, raw)
	if err != nil {
		return storage.Configuration{}, err
	}
	m.audit(id, "rename", newName)
	return updated, nil
}

// Delete removes the record (child rows cascade) and then the canonical
// file. A file-deletion failure is logged, not fatal: the filename is never
// reused, so a stale file cannot collide with a future configuration.
func (m *Manager) Delete(id int64) error {
	rec, err := m.store.GetConfiguration(id)
	if err != nil {
		return err
	}

	if err := m.store.DeleteConfiguration(id); err != nil {
		return err
	}

	path := m.filePath(rec)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).
			Msg("could not delete configuration file")
	}

	m.audit(id, "delete", rec.Name)
	return nil
}

// Get returns the cached parent record.
func (m *Manager) Get(id int64) (storage.Configuration, error) {
	return m.store.GetConfiguration(id)
}

// GetByName looks a configuration up by its unique metadata name.
func (m *Manager) GetByName(name string) (storage.Configuration, error) {
	return m.store.GetConfigurationByName(name)
}

// List returns all configurations ordered by id.
func (m *Manager) List() ([]storage.Configuration, error) {
	return m.store.ListConfigurations()
}

// Children returns the stored child records of a configuration.
func (m *Manager) Children(id int64) (records.Children, error) {
	return m.store.GetChildren(id)
}

// Document materializes the stored document. Drafts validate with the
// placeholder datasource substituted.
func (m *Manager) Document(id int64) (*document.Document, error) {
	rec, err := m.store.GetConfiguration(id)
	if err != nil {
		return nil, err
	}
	cfg, err := m.decode(rec)
	if err != nil {
		return nil, err
	}
	format, err := codec.ParseFormat(rec.Format)
	if err != nil {
		format = codec.FormatJSON
	}
	return &document.Document{Config: cfg, Source: format}, nil
}

// Audit returns the newest-first audit trail for a configuration.
func (m *Manager) Audit(id int64, limit int) ([]storage.AuditEntry, error) {
	return m.store.ListAudit(id, limit)
}

// --- internals ---

func (m *Manager) insertRecord(cfg *schema.ChatbotConfig, format codec.Format, state string) (storage.Configuration, error) {
	text, err := codec.Serialize(cfg, codec.FormatJSON)
	if err != nil {
		return storage.Configuration{}, fmt.Errorf("encoding document: %w", err)
	}
	return m.store.CreateConfiguration(storage.Configuration{
		Name:        cfg.Metadata.Name,
		Description: cfg.Metadata.Description,
		Author:      cfg.Metadata.Author,
		Format:      string(format),
		State:       state,
		ConfigJSON:  text,
		Created:     cfg.Metadata.Created.Time,
		Modified:    cfg.Metadata.Modified.Time,
	})
}

func (m *Manager) updateRecord(rec storage.Configuration, doc *document.Document, state string) (storage.Configuration, error) {
	text, err := doc.Dump(codec.FormatJSON)
	if err != nil {
		return storage.Configuration{}, fmt.Errorf("encoding document: %w", err)
	}
	rec.Name = doc.Config.Metadata.Name
	rec.Description = doc.Config.Metadata.Description
	rec.Author = doc.Config.Metadata.Author
	rec.State = state
	rec.ConfigJSON = text
	rec.Modified = doc.Config.Metadata.Modified.Time
	if err := m.store.UpdateConfiguration(rec); err != nil {
		return storage.Configuration{}, err
	}
	return rec, nil
}

// writeFile writes the canonical file in the record's chosen encoding.
func (m *Manager) writeFile(rec storage.Configuration, doc *document.Document) error {
	format, err := codec.ParseFormat(rec.Format)
	if err != nil {
		return err
	}
	text, err := doc.Dump(format)
	if err != nil {
		return err
	}
	path := m.filePath(rec)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return &FileError{Op: "writing", Path: path, Err: err}
	}
	return nil
}

// decode turns the cached JSON back into a typed document, substituting the
// placeholder datasource for drafts.
func (m *Manager) decode(rec storage.Configuration) (*schema.ChatbotConfig, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &raw); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}
	if rec.State == storage.StateDraft {
		raw = withPlaceholder(raw)
	}
	return schema.Validate(raw)
}

// revalidate runs a typed document through full validation again, catching
// anything child reconciliation may have broken.
func revalidate(cfg *schema.ChatbotConfig) (*document.Document, error) {
	text, err := codec.Serialize(cfg, codec.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return document.Parse(text)
}

// checkChildKeys rejects child sets whose term or field name keys collide.
// Flatten would silently collapse such duplicates into one map entry, so the
// committed document would not match what the caller submitted.
func checkChildKeys(c records.Children) error {
	terms := make(map[string]bool, len(c.BusinessTerms))
	for _, t := range c.BusinessTerms {
		if terms[t.Term] {
			return fmt.Errorf("duplicate business term %q: %w", t.Term, storage.ErrConflict)
		}
		terms[t.Term] = true
	}

	fields := make(map[string]bool, len(c.FieldMappings))
	for _, f := range c.FieldMappings {
		if fields[f.FieldName] {
			return fmt.Errorf("duplicate field mapping %q: %w", f.FieldName, storage.ErrConflict)
		}
		fields[f.FieldName] = true
	}
	return nil
}

// withPlaceholder returns a copy of raw with the placeholder datasource
// substituted when the datasource list is absent or empty.
func withPlaceholder(raw map[string]any) map[string]any {
	data, err := json.Marshal(raw)
	if err != nil {
		return raw
	}
	var clone map[string]any
	if err := json.Unmarshal(data, &clone); err != nil {
		return raw
	}

	dc, ok := clone["data_context"].(map[string]any)
	if !ok {
		dc = map[string]any{}
		clone["data_context"] = dc
	}
	list, _ := dc["datasources"].([]any)
	if len(list) == 0 {
		dc["datasources"] = []any{placeholderDatasource}
	}
	return clone
}

func (m *Manager) audit(id int64, action, detail string) {
	err := m.store.AppendAudit(storage.AuditEntry{ConfigID: id, Action: action, Detail: detail})
	if err != nil {
		log.Warn().Err(err).Int64("id", id).Str("action", action).
			Msg("could not record audit entry")
	}
}
