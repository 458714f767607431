// Package api exposes the configuration store over HTTP for the admin UI:
// CRUD on configurations, child-record editing, and read-only projections.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kheast/cb-config/internal/codec"
	"github.com/kheast/cb-config/internal/lifecycle"
	"github.com/kheast/cb-config/internal/records"
	"github.com/kheast/cb-config/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Manager *lifecycle.Manager
	Token   string
}

// ConfigurationSummary is the list/detail representation of a parent record.
type ConfigurationSummary struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Format      string    `json:"format"`
	State       string    `json:"state"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func summarize(c storage.Configuration) ConfigurationSummary {
	return ConfigurationSummary{
		ID:          c.ID,
		Filename:    c.Filename,
		Name:        c.Name,
		Description: c.Description,
		Author:      c.Author,
		Format:      c.Format,
		State:       c.State,
		Created:     c.Created,
		Modified:    c.Modified,
	}
}

type createRequest struct {
	Format   string         `json:"format"`
	Draft    bool           `json:"draft"`
	Document map[string]any `json:"document"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// NewHandler builds the admin API router.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/configurations", handleList(deps))
		r.Post("/configurations", handleCreate(deps))
		r.Get("/configurations/{id}", handleGet(deps))
		r.Put("/configurations/{id}", handleUpdate(deps))
		r.Delete("/configurations/{id}", handleDelete(deps))
		r.Post("/configurations/{id}/rename", handleRename(deps))
		r.Get("/configurations/{id}/children", handleGetChildren(deps))
		r.Put("/configurations/{id}/children", handlePutChildren(deps))
		r.Get("/configurations/{id}/prompt", handlePrompt(deps))
		r.Get("/configurations/{id}/datasource-ids", handleDatasourceIDs(deps))
		r.Get("/configurations/{id}/export", handleExport(deps))
		r.Get("/configurations/{id}/audit", handleAudit(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func handleList(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Manager.List()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		summaries := make([]ConfigurationSummary, len(list))
		for i, c := range list {
			summaries[i] = summarize(c)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summaries)
	}
}

func handleCreate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Document == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "document is required")
			return
		}

		format := codec.FormatJSON
		if req.Format != "" {
			var err error
			if format, err = codec.ParseFormat(req.Format); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}

		draft := req.Draft || r.URL.Query().Get("draft") == "true"

		var (
			rec storage.Configuration
			err error
		)
		if draft {
			rec, err = deps.Manager.CreateDraft(req.Document, format)
		} else {
			rec, err = deps.Manager.Create(req.Document, format)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(summarize(rec))
	}
}

func handleGet(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		rec, err := deps.Manager.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		var doc json.RawMessage = []byte(rec.ConfigJSON)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			ConfigurationSummary
			Document json.RawMessage `json:"document"`
		}{summarize(rec), doc})
	}
}

func handleUpdate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rec, err := deps.Manager.Update(id, doc)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summarize(rec))
	}
}

func handleDelete(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		if err := deps.Manager.Delete(id); err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleRename(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req renameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}

		rec, err := deps.Manager.Rename(id, req.Name)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summarize(rec))
	}
}

func handleGetChildren(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		if _, err := deps.Manager.Get(id); err != nil {
			writeDomainError(w, err)
			return
		}

		children, err := deps.Manager.Children(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(children)
	}
}

func handlePutChildren(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var children records.Children
		if err := json.NewDecoder(r.Body).Decode(&children); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		rec, err := deps.Manager.SaveChildren(id, children)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summarize(rec))
	}
}

func handlePrompt(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		doc, err := deps.Manager.Document(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(doc.CompiledPrompt()))
	}
}

func handleDatasourceIDs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		doc, err := deps.Manager.Document(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"datasource_ids": doc.DatasourceIDs()})
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		format := codec.FormatJSON
		if q := r.URL.Query().Get("format"); q != "" {
			var err error
			if format, err = codec.ParseFormat(q); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}

		doc, err := deps.Manager.Document(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		text, err := doc.Dump(format)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		switch format {
		case codec.FormatYAML:
			w.Header().Set("Content-Type", "application/yaml")
		default:
			w.Header().Set("Content-Type", "application/json")
		}
		w.Write([]byte(text))
	}
}

func handleAudit(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid configuration id")
			return
		}

		if _, err := deps.Manager.Get(id); err != nil {
			writeDomainError(w, err)
			return
		}

		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= 500 {
				limit = v
			}
		}

		entries, err := deps.Manager.Audit(id, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if entries == nil {
			entries = []storage.AuditEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}
