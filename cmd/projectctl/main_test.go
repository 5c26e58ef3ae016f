package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer records the last request and answers by path.
type fakeServer struct {
	lastAuth string
	lastBody string
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","version":"1.2.3"}`)
	})
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `[{"id":"a"},{"id":"b"}]`)
	})
	mux.HandleFunc("GET /api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "507f1f77bcf86cd799439011" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":"not_found","message":"project not found"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"507f1f77bcf86cd799439011","name":"alpha"}`)
	})
	mux.HandleFunc("POST /api/projects", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.lastBody = string(raw)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"new"}`)
	})
	return mux
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func startFake(t *testing.T) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestHealth(t *testing.T) {
	_, url := startFake(t)

	out, err := execute(t, "", "health", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.Contains(t, out, "Server Version: 1.2.3")
}

func TestProjectsList_SendsToken(t *testing.T) {
	f, url := startFake(t)

	out, err := execute(t, "", "projects", "list", "--server", url+"/", "--token", "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", f.lastAuth)

	var got []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 2)
}

func TestProjectsGet(t *testing.T) {
	_, url := startFake(t)

	out, err := execute(t, "", "projects", "get", "507f1f77bcf86cd799439011", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "alpha"`)

	_, err = execute(t, "", "projects", "get", "507f1f77bcf86cd799439012", "--server", url)
	assert.ErrorContains(t, err, "status 404: not_found: project not found")

	_, err = execute(t, "", "projects", "get", "--server", url)
	assert.Error(t, err)
}

func TestProjectsCreate(t *testing.T) {
	f, url := startFake(t)

	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"alpha"}`), 0o600))

	out, err := execute(t, "", "projects", "create", "-f", path, "--server", url)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alpha"}`, f.lastBody)
	assert.Contains(t, out, `"id": "new"`)

	_, err = execute(t, `{"name":"beta"}`, "projects", "create", "-f", "-", "--server", url)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"beta"}`, f.lastBody)

	_, err = execute(t, `not json`, "projects", "create", "-f", "-", "--server", url)
	assert.ErrorContains(t, err, "valid JSON")

	_, err = execute(t, "", "projects", "create", "--server", url)
	assert.ErrorContains(t, err, `required flag(s) "file" not set`)
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := execute(t, "", "health", "--server", url)
	assert.ErrorContains(t, err, "failed to send request")
}
