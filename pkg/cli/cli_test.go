package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    string
}

// requestRecorder is a thread-safe recorder for requests received by
// httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, _ := io.ReadAll(req.Body)
	defer func() { _ = req.Body.Close() }()
	r.requests = append(r.requests, capturedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Headers: req.Header.Clone(),
		Body:    string(body),
	})
}

func (r *requestRecorder) last() capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return capturedRequest{}
	}
	return r.requests[len(r.requests)-1]
}

func jsonHandler(rec *requestRecorder, status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}
}

// runCommand executes the root command against the given server and
// returns the output written to the command's writer.
func runCommand(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--host", srv.URL, "--principal", "alice"}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeStepsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatasetList(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200,
		`{"data":[{"id":"0198ff001122334455","name":"churn","head_version_id":"0198ff99","created_by":"alice","created_at":"2026-08-29T10:00:00Z","updated_at":"2026-08-29T10:00:00Z"}]}`))
	defer srv.Close()

	out, err := runCommand(t, srv, "dataset", "list")
	require.NoError(t, err)

	captured := rec.last()
	assert.Equal(t, "GET", captured.Method)
	assert.Equal(t, "/v1/datasets", captured.Path)
	assert.Equal(t, "alice", captured.Headers.Get("X-Principal"))
	assert.Contains(t, out, "churn")
	assert.Contains(t, out, "NAME")
}

func TestDatasetUpload(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 201,
		`{"dataset":{"id":"d1","name":"churn","created_by":"alice"},"version":{"id":"v1","row_count":4,"column_count":3}}`))
	defer srv.Close()

	csvPath := filepath.Join(t.TempDir(), "churn.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b\n1,2\n"), 0o644))

	out, err := runCommand(t, srv, "dataset", "upload", "churn", "--file", csvPath)
	require.NoError(t, err)

	captured := rec.last()
	assert.Equal(t, "POST", captured.Method)
	assert.Equal(t, "/v1/datasets", captured.Path)
	assert.Contains(t, captured.Body, `"name":"churn"`)
	assert.Contains(t, captured.Body, `a,b\n1,2\n`)
	assert.Contains(t, out, "Created dataset churn")
	assert.Contains(t, out, "4 rows, 3 columns")
}

func TestApplyWait(t *testing.T) {
	rec := &requestRecorder{}
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/datasets/churn/apply", jsonHandler(rec, 202,
		`{"id":"j1","status":"QUEUED","attempt":0}`))
	mux.HandleFunc("/v1/apply-jobs/j1", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		polls++
		w.Header().Set("Content-Type", "application/json")
		if polls < 2 {
			_, _ = w.Write([]byte(`{"id":"j1","status":"RUNNING","attempt":1}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"j1","status":"SUCCEEDED","attempt":1,"result_version_id":"v2"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	steps := writeStepsFile(t, `[{"kind":"drop_missing","columns":["age"]}]`)
	out, err := runCommand(t, srv, "apply", "churn", "--steps-file", steps, "--wait")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, polls, 2)
	assert.Contains(t, out, "SUCCEEDED")
	assert.Contains(t, out, "v2")
}

func TestApplyFailedJobIsAnError(t *testing.T) {
	rec := &requestRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/datasets/churn/apply", jsonHandler(rec, 202,
		`{"id":"j1","status":"QUEUED","attempt":0}`))
	mux.HandleFunc("/v1/apply-jobs/j1", jsonHandler(rec, 200,
		`{"id":"j1","status":"FAILED","attempt":3,"error_message":"validation rejected"}`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	steps := writeStepsFile(t, `[{"kind":"drop_missing","columns":["age"]}]`)
	out, err := runCommand(t, srv, "apply", "churn", "--steps-file", steps, "--wait")
	require.Error(t, err)
	assert.Contains(t, out, "validation rejected")
}

func TestRecipeApplyPartialFailure(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200,
		`{"results":[{"dataset_name":"churn","result_version_id":"v2"},{"dataset_name":"billing","error":"dataset not found"}]}`))
	defer srv.Close()

	out, err := runCommand(t, srv, "recipe", "apply", "prep",
		"--dataset", "churn", "--dataset", "billing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 datasets failed")
	assert.Contains(t, out, "churn")
	assert.Contains(t, out, "dataset not found")

	captured := rec.last()
	assert.Equal(t, "/v1/recipes/prep/apply", captured.Path)
	assert.Contains(t, captured.Body, `"datasets":["churn","billing"]`)
}

func TestVersionDataRaw(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	out, err := runCommand(t, srv, "version", "data", "v1")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", out)
	assert.Equal(t, "/v1/versions/v1/data", rec.last().Path)
}

func TestAPIErrorSurfaced(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 404,
		`{"code":404,"message":"dataset \"ghost\" not found"}`))
	defer srv.Close()

	_, err := runCommand(t, srv, "dataset", "get", "ghost")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.HTTPStatus)
	assert.Contains(t, apiErr.Message, "ghost")
}

func TestInvalidOutputFormat(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := runCommand(t, srv, "--output", "xml", "dataset", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
