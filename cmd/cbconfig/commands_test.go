package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func useTestClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = old })
}

const validDocumentJSON = `{
  "metadata": {
    "name": "cli-test",
    "description": "command test configuration",
    "created": "2025-03-01T08:00:00Z",
    "modified": "2025-03-01T08:00:00Z",
    "author": "tester@example.com"
  },
  "llm_credentials": {"openai": {"api_key": "sk-test"}},
  "llm_parameters": {"model": "gpt-4o"},
  "data_context": {
    "datasources": [
      {
        "name": "Pipeline",
        "portal_datasource_id": "ds-001",
        "description": "Open opportunities",
        "primary_entity": "opportunity"
      }
    ]
  },
  "system_prompt": {
    "base_prompt": "You answer questions about the sales pipeline for account executives at the company."
  }
}`

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestValidateCommand_Valid(t *testing.T) {
	path := writeTempDoc(t, "valid.json", validDocumentJSON)

	if err := execute(t, "validate", path); err != nil {
		t.Errorf("validate returned error: %v", err)
	}
}

func TestValidateCommand_Invalid(t *testing.T) {
	bad := strings.Replace(validDocumentJSON, `"model": "gpt-4o"`, `"model": "gpt-4o", "temperature": 1.5`, 1)
	path := writeTempDoc(t, "invalid.json", bad)

	err := execute(t, "validate", path)
	if err == nil {
		t.Fatal("expected error for invalid document")
	}
	if !strings.Contains(err.Error(), "validation error") {
		t.Errorf("error = %q, want it to mention validation errors", err.Error())
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	if err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConvertCommand(t *testing.T) {
	path := writeTempDoc(t, "doc.json", validDocumentJSON)
	out := filepath.Join(t.TempDir(), "doc.yaml")

	if err := execute(t, "convert", path, "--to", "yaml", "--output", out); err != nil {
		t.Fatalf("convert returned error: %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "name: cli-test") {
		t.Errorf("converted output missing YAML content:\n%s", content)
	}
}

func TestConvertCommand_BadFormat(t *testing.T) {
	path := writeTempDoc(t, "doc.json", validDocumentJSON)

	if err := execute(t, "convert", path, "--to", "toml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestCreateCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /configurations": `{"id":1,"filename":"000001.json","name":"cli-test","state":"saved"}`,
	})
	useTestClient(t, ts)

	path := writeTempDoc(t, "doc.json", validDocumentJSON)
	if err := execute(t, "create", path); err != nil {
		t.Fatalf("create returned error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["format"] != "json" {
		t.Errorf("format = %v, want json (detected)", body["format"])
	}
	doc, _ := body["document"].(map[string]any)
	if doc == nil {
		t.Fatal("request body missing document")
	}
}

func TestCreateCommand_Draft(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /configurations": `{"id":2,"name":"cli-test","state":"draft"}`,
	})
	useTestClient(t, ts)

	path := writeTempDoc(t, "doc.json", validDocumentJSON)
	if err := execute(t, "create", path, "--draft"); err != nil {
		t.Fatalf("create --draft returned error: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["draft"] != true {
		t.Errorf("draft = %v, want true", body["draft"])
	}
}

func TestRenameCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /configurations/3/rename": `{"id":3,"name":"renamed"}`,
	})
	useTestClient(t, ts)

	if err := execute(t, "rename", "3", "renamed"); err != nil {
		t.Fatalf("rename returned error: %v", err)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatal(err)
	}
	if body["name"] != "renamed" {
		t.Errorf("name = %q", body["name"])
	}
}

func TestDeleteCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /configurations/4": `{"status":"deleted"}`,
	})
	useTestClient(t, ts)

	if err := execute(t, "delete", "4"); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if ts.requests[0].Method != "DELETE" {
		t.Errorf("method = %q", ts.requests[0].Method)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad-token", httpClient: ts.Client()}

	resp, err := client.get("/configurations")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestAPIClient_Unreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get("/configurations")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
