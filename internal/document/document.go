// Package document provides the load/construct/serialize surface for chatbot
// configuration documents, plus read-only projections derived from them.
package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/kheast/cb-config/internal/codec"
	"github.com/kheast/cb-config/internal/schema"
)

// ErrNotFound reports that a document file path does not exist.
var ErrNotFound = errors.New("configuration file not found")

// Document is one validated configuration together with the encoding it was
// read from. Source is FormatJSON for documents built in memory.
type Document struct {
	Config *schema.ChatbotConfig
	Source codec.Format
}

// Load reads, parses, and validates a configuration file. The encoding is
// detected from content, not the file extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(string(data))
}

// Parse validates a raw text blob in either encoding.
func Parse(text string) (*Document, error) {
	format := codec.Detect(text)
	m, err := codec.Parse(text)
	if err != nil {
		return nil, err
	}
	cfg, err := schema.Validate(m)
	if err != nil {
		return nil, err
	}
	return &Document{Config: cfg, Source: format}, nil
}

// FromMap validates an already-parsed generic mapping, as produced by the
// admin form layer.
func FromMap(m map[string]any) (*Document, error) {
	cfg, err := schema.Validate(m)
	if err != nil {
		return nil, err
	}
	return &Document{Config: cfg, Source: codec.FormatJSON}, nil
}

// Dump serializes the document. JSON is the default; callers wanting the
// original encoding back must pass d.Source explicitly.
func (d *Document) Dump(format codec.Format) (string, error) {
	if format == "" {
		format = codec.FormatJSON
	}
	return codec.Serialize(d.Config, format)
}

// CompiledPrompt assembles the complete system prompt: base prompt, then
// personality traits, response guidelines, and the business-term glossary,
// each section omitted when its source is empty. Glossary terms are sorted
// so output is deterministic.
func (d *Document) CompiledPrompt() string {
	sp := d.Config.SystemPrompt
	parts := []string{sp.BasePrompt}

	if len(sp.Persona.PersonalityTraits) > 0 {
		parts = append(parts, "\nPersonality: "+strings.Join(sp.Persona.PersonalityTraits, ", "))
	}

	if len(sp.ResponseGuidelines) > 0 {
		lines := make([]string, len(sp.ResponseGuidelines))
		for i, g := range sp.ResponseGuidelines {
			lines[i] = "- " + g
		}
		parts = append(parts, "\nResponse guidelines:\n"+strings.Join(lines, "\n"))
	}

	terms := d.Config.DataContext.SemanticLayer.BusinessTerms
	if len(terms) > 0 {
		names := make([]string, 0, len(terms))
		for term := range terms {
			names = append(names, term)
		}
		sort.Strings(names)
		lines := make([]string, len(names))
		for i, term := range names {
			lines[i] = fmt.Sprintf("- %s: %s", term, terms[term])
		}
		parts = append(parts, "\nBusiness terminology:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n")
}

// DatasourceIDs projects the portal datasource ids in declaration order.
func (d *Document) DatasourceIDs() []string {
	ids := make([]string, len(d.Config.DataContext.Datasources))
	for i, ds := range d.Config.DataContext.Datasources {
		ids[i] = ds.PortalDatasourceID
	}
	return ids
}
