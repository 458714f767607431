// Package records defines the flat child-record mirror of a configuration's
// data context: one row per datasource, business term, and field mapping.
// The rows exist for piecewise editing; the nested document stays canonical
// once the rows are flattened back into it.
package records

import (
	"sort"
	"strings"

	"github.com/kheast/cb-config/internal/schema"
)

// DatasourceRecord mirrors one entry of data_context.datasources.
type DatasourceRecord struct {
	Name               string `json:"name"`
	PortalDatasourceID string `json:"portal_datasource_id"`
	Description        string `json:"description"`
	PrimaryEntity      string `json:"primary_entity"`
	RefreshFrequency   string `json:"refresh_frequency"`
}

// BusinessTermRecord mirrors one business_terms glossary entry.
type BusinessTermRecord struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// FieldMappingRecord mirrors one field_mappings entry. ValidValues holds the
// optional enumerated values comma-joined, matching the single text column
// it is stored in.
type FieldMappingRecord struct {
	FieldName    string `json:"field_name"`
	BusinessName string `json:"business_name"`
	Description  string `json:"description"`
	Format       string `json:"format"`
	ValidValues  string `json:"valid_values"`
}

// Children is the full child-record projection of one document.
type Children struct {
	Datasources   []DatasourceRecord   `json:"datasources"`
	BusinessTerms []BusinessTermRecord `json:"business_terms"`
	FieldMappings []FieldMappingRecord `json:"field_mappings"`
}

// binding ties one document-side field to one record-side field through a
// pair of accessors. Both copy directions are derived from the same pair, so
// the two traversals cannot drift apart when the schema grows a field.
type binding[D, R any] struct {
	doc func(*D) *string
	rec func(*R) *string
}

func copyToRecords[D, R any](bindings []binding[D, R], src *D, dst *R) {
	for _, b := range bindings {
		*b.rec(dst) = *b.doc(src)
	}
}

func copyToDocument[D, R any](bindings []binding[D, R], src *R, dst *D) {
	for _, b := range bindings {
		*b.doc(dst) = *b.rec(src)
	}
}

var datasourceBindings = []binding[schema.Datasource, DatasourceRecord]{
	{func(d *schema.Datasource) *string { return &d.Name }, func(r *DatasourceRecord) *string { return &r.Name }},
	{func(d *schema.Datasource) *string { return &d.PortalDatasourceID }, func(r *DatasourceRecord) *string { return &r.PortalDatasourceID }},
	{func(d *schema.Datasource) *string { return &d.Description }, func(r *DatasourceRecord) *string { return &r.Description }},
	{func(d *schema.Datasource) *string { return &d.PrimaryEntity }, func(r *DatasourceRecord) *string { return &r.PrimaryEntity }},
	{func(d *schema.Datasource) *string { return &d.RefreshFrequency }, func(r *DatasourceRecord) *string { return &r.RefreshFrequency }},
}

var fieldMappingBindings = []binding[schema.FieldMapping, FieldMappingRecord]{
	{func(m *schema.FieldMapping) *string { return &m.BusinessName }, func(r *FieldMappingRecord) *string { return &r.BusinessName }},
	{func(m *schema.FieldMapping) *string { return &m.Description }, func(r *FieldMappingRecord) *string { return &r.Description }},
	{func(m *schema.FieldMapping) *string { return &m.Format }, func(r *FieldMappingRecord) *string { return &r.Format }},
}

// Explode projects a document's data context into child records. Mapping
// sections come out sorted by key; the datasource list keeps its declared
// order.
func Explode(cfg *schema.ChatbotConfig) Children {
	var c Children

	for i := range cfg.DataContext.Datasources {
		var rec DatasourceRecord
		copyToRecords(datasourceBindings, &cfg.DataContext.Datasources[i], &rec)
		c.Datasources = append(c.Datasources, rec)
	}

	layer := cfg.DataContext.SemanticLayer
	for _, term := range sortedKeys(layer.BusinessTerms) {
		c.BusinessTerms = append(c.BusinessTerms, BusinessTermRecord{
			Term:       term,
			Definition: layer.BusinessTerms[term],
		})
	}

	for _, name := range sortedKeys(layer.FieldMappings) {
		mapping := layer.FieldMappings[name]
		rec := FieldMappingRecord{FieldName: name}
		copyToRecords(fieldMappingBindings, &mapping, &rec)
		rec.ValidValues = joinValues(mapping.ValidValues)
		c.FieldMappings = append(c.FieldMappings, rec)
	}

	return c
}

// Flatten writes the child records back into the document's data context,
// replacing the three mirrored sections. Records are applied in stable order
// (datasources by name, terms by term, mappings by field name) so repeated
// flattens of the same children produce identical documents.
func Flatten(c Children, cfg *schema.ChatbotConfig) {
	datasources := make([]schema.Datasource, len(c.Datasources))
	ordered := append([]DatasourceRecord(nil), c.Datasources...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	for i := range ordered {
		copyToDocument(datasourceBindings, &ordered[i], &datasources[i])
	}
	cfg.DataContext.Datasources = datasources

	terms := make(map[string]string, len(c.BusinessTerms))
	for _, rec := range c.BusinessTerms {
		terms[rec.Term] = rec.Definition
	}
	cfg.DataContext.SemanticLayer.BusinessTerms = terms

	mappings := make(map[string]schema.FieldMapping, len(c.FieldMappings))
	for i := range c.FieldMappings {
		rec := c.FieldMappings[i]
		var mapping schema.FieldMapping
		copyToDocument(fieldMappingBindings, &rec, &mapping)
		mapping.ValidValues = splitValues(rec.ValidValues)
		mappings[rec.FieldName] = mapping
	}
	cfg.DataContext.SemanticLayer.FieldMappings = mappings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinValues(values []string) string {
	return strings.Join(values, ",")
}

func splitValues(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
