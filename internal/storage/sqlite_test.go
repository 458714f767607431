package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kheast/cb-config/internal/records"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testConfiguration(name string) Configuration {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return Configuration{
		Name:        name,
		Description: "test configuration",
		Author:      "tester@example.com",
		Format:      "json",
		State:       StateDraft,
		ConfigJSON:  `{"version":"1.0.0"}`,
		Created:     now,
		Modified:    now,
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestCreateAssignsIDAndFilename(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}
	if c.ID != 1 {
		t.Errorf("id = %d, want 1", c.ID)
	}
	if c.Filename != "000001.json" {
		t.Errorf("filename = %q, want 000001.json", c.Filename)
	}

	yaml := testConfiguration("beta")
	yaml.Format = "yaml"
	c2, err := s.CreateConfiguration(yaml)
	if err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}
	if c2.Filename != "000002.yaml" {
		t.Errorf("filename = %q, want 000002.yaml", c2.Filename)
	}
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateConfiguration(testConfiguration("alpha")); err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}
	_, err := s.CreateConfiguration(testConfiguration("alpha"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIDNeverReused(t *testing.T) {
	s := openTestStore(t)

	first, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}
	if err := s.DeleteConfiguration(first.ID); err != nil {
		t.Fatalf("DeleteConfiguration: %v", err)
	}

	second, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("id %d reused after deleting id %d", second.ID, first.ID)
	}
	if second.Filename == first.Filename {
		t.Errorf("filename %q reused", second.Filename)
	}
}

func TestGetAndList(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}

	got, err := s.GetConfiguration(created.ID)
	if err != nil {
		t.Fatalf("GetConfiguration: %v", err)
	}
	if got.Name != "alpha" || got.ConfigJSON != created.ConfigJSON {
		t.Errorf("got %+v", got)
	}
	if !got.Created.Equal(created.Created) {
		t.Errorf("created = %v, want %v", got.Created, created.Created)
	}

	byName, err := s.GetConfigurationByName("alpha")
	if err != nil {
		t.Fatalf("GetConfigurationByName: %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("byName.ID = %d, want %d", byName.ID, created.ID)
	}

	if _, err := s.GetConfiguration(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListConfigurations()
	if err != nil {
		t.Fatalf("ListConfigurations: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list = %d entries, want 1", len(list))
	}
}

func TestUpdateConfiguration(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatalf("CreateConfiguration: %v", err)
	}

	c.Description = "updated"
	c.State = StateSaved
	c.Modified = c.Modified.Add(time.Hour)
	if err := s.UpdateConfiguration(c); err != nil {
		t.Fatalf("UpdateConfiguration: %v", err)
	}

	got, err := s.GetConfiguration(c.ID)
	if err != nil {
		t.Fatalf("GetConfiguration: %v", err)
	}
	if got.Description != "updated" || got.State != StateSaved {
		t.Errorf("got %+v", got)
	}

	missing := c
	missing.ID = 999
	if err := s.UpdateConfiguration(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateNameConflict(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.CreateConfiguration(testConfiguration("alpha")); err != nil {
		t.Fatal(err)
	}
	c, err := s.CreateConfiguration(testConfiguration("beta"))
	if err != nil {
		t.Fatal(err)
	}

	c.Name = "alpha"
	if err := s.UpdateConfiguration(c); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestNameExists(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatal(err)
	}

	exists, err := s.NameExists("alpha", 0)
	if err != nil || !exists {
		t.Errorf("NameExists(alpha, 0) = %v, %v, want true", exists, err)
	}
	exists, err = s.NameExists("alpha", c.ID)
	if err != nil || exists {
		t.Errorf("NameExists excluding self = %v, %v, want false", exists, err)
	}
}

func TestChildrenRoundTrip(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatal(err)
	}

	children := records.Children{
		Datasources: []records.DatasourceRecord{
			{Name: "Pipeline", PortalDatasourceID: "ds-001", RefreshFrequency: "daily"},
			{Name: "Accounts", PortalDatasourceID: "ds-002", RefreshFrequency: "weekly"},
		},
		BusinessTerms: []records.BusinessTermRecord{
			{Term: "MRR", Definition: "Monthly recurring revenue"},
			{Term: "ARR", Definition: "Annual recurring revenue"},
		},
		FieldMappings: []records.FieldMappingRecord{
			{FieldName: "stage", BusinessName: "Deal Stage", ValidValues: "open,closed"},
		},
	}
	if err := s.ReplaceChildren(c.ID, children); err != nil {
		t.Fatalf("ReplaceChildren: %v", err)
	}

	got, err := s.GetChildren(c.ID)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(got.Datasources) != 2 || got.Datasources[0].Name != "Pipeline" {
		t.Errorf("datasources = %+v", got.Datasources)
	}
	if len(got.BusinessTerms) != 2 || got.BusinessTerms[0].Term != "ARR" {
		t.Errorf("business terms not key-sorted: %+v", got.BusinessTerms)
	}
	if len(got.FieldMappings) != 1 || got.FieldMappings[0].ValidValues != "open,closed" {
		t.Errorf("field mappings = %+v", got.FieldMappings)
	}

	// replace, not merge
	if err := s.ReplaceChildren(c.ID, records.Children{}); err != nil {
		t.Fatalf("ReplaceChildren(empty): %v", err)
	}
	got, err = s.GetChildren(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Datasources)+len(got.BusinessTerms)+len(got.FieldMappings) != 0 {
		t.Errorf("children not cleared: %+v", got)
	}
}

func TestChildrenDuplicateKeyConflicts(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatal(err)
	}

	err = s.ReplaceChildren(c.ID, records.Children{
		BusinessTerms: []records.BusinessTermRecord{
			{Term: "ARR", Definition: "one"},
			{Term: "ARR", Definition: "two"},
		},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteCascadesChildren(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatal(err)
	}
	children := records.Children{
		Datasources: []records.DatasourceRecord{{Name: "Pipeline", PortalDatasourceID: "ds-001"}},
	}
	if err := s.ReplaceChildren(c.ID, children); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteConfiguration(c.ID); err != nil {
		t.Fatalf("DeleteConfiguration: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM datasources WHERE config_id = ?`, c.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("child rows survived delete: %d", count)
	}

	if err := s.DeleteConfiguration(c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuditLog(t *testing.T) {
	s := openTestStore(t)

	c, err := s.CreateConfiguration(testConfiguration("alpha"))
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"create", "update", "delete"} {
		err := s.AppendAudit(AuditEntry{
			ConfigID:  c.ID,
			Action:    action,
			Detail:    fmt.Sprintf("step %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendAudit(%s): %v", action, err)
		}
	}

	entries, err := s.ListAudit(c.ID, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Action != "delete" || entries[2].Action != "create" {
		t.Errorf("entries not newest-first: %+v", entries)
	}
	if entries[0].ID == "" {
		t.Error("audit id not generated")
	}

	limited, err := s.ListAudit(c.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d entries", len(limited))
	}
}
