//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riviantrackr/aisearch/internal/testutil"
)

const adminToken = "e2e-admin-token"

// E2ETestEnv holds the containers, the fake provider and the aisearchd
// binary used by the end-to-end tests.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Provider   *FakeProvider
	BinaryDir  string
	ServerURL  string
	HTTPClient *http.Client

	serverCmd *exec.Cmd
}

// SetupE2EEnv starts Postgres and the fake provider and builds aisearchd.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Provider:   NewFakeProvider(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.buildBinary()
	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	e.StopServer()
	if e.Provider != nil {
		e.Provider.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) buildBinary() {
	tmpDir, err := os.MkdirTemp("", "aisearchd-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "aisearchd"), "./cmd/aisearchd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build aisearchd: %v\n%s", err, out)
	}
}

// Environ returns the aisearchd configuration for this environment.
func (e *E2ETestEnv) Environ(extra ...string) []string {
	env := append(os.Environ(),
		"AISEARCH_STORE=postgres",
		"AISEARCH_SELECTOR=postgres",
		"AISEARCH_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"AISEARCH_OPENAI_API_KEY=sk-e2e",
		"AISEARCH_OPENAI_BASE_URL="+e.Provider.URL()+"/v1",
		"AISEARCH_ADMIN_TOKEN="+adminToken,
		"AISEARCH_RETRY_BASE_DELAY=10ms",
		"AISEARCH_LOG_LEVEL=warn",
	)
	return append(env, extra...)
}

// Run runs an aisearchd subcommand to completion.
func (e *E2ETestEnv) Run(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "aisearchd"), args...)
	cmd.Env = e.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// StartServer runs "aisearchd serve" on a free port.
func (e *E2ETestEnv) StartServer(extraEnv ...string) {
	port, err := getFreePort()
	if err != nil {
		e.T.Fatalf("failed to get free port: %v", err)
	}

	cmd := exec.Command(filepath.Join(e.BinaryDir, "aisearchd"), "serve", "--port", fmt.Sprint(port))
	cmd.Env = e.Environ(extraEnv...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start aisearchd: %v", err)
	}
	e.serverCmd = cmd
	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, e.ServerURL, 20*time.Second)
}

// StopServer sends SIGINT and waits for a graceful exit.
func (e *E2ETestEnv) StopServer() {
	if e.serverCmd == nil || e.serverCmd.Process == nil {
		return
	}
	_ = e.serverCmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- e.serverCmd.Wait() }()
	select {
	case <-done:
	case <-time.After(35 * time.Second):
		_ = e.serverCmd.Process.Kill()
	}
	e.serverCmd = nil
}

// Summary calls GET /summary as a browser would.
func (e *E2ETestEnv) Summary(query string, userAgent string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(http.MethodGet, e.ServerURL+"/summary?q="+url.QueryEscape(query), nil)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return e.do(req)
}

// Admin calls an admin endpoint with the bearer token.
func (e *E2ETestEnv) Admin(method, path string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(method, e.ServerURL+path, nil)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	return e.do(req)
}

func (e *E2ETestEnv) do(req *http.Request) (*http.Response, map[string]any) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		e.T.Fatalf("failed to decode body %q: %v", raw, err)
	}
	return resp, body
}

// SeedArticles writes docs to a file and imports them with the CLI.
func (e *E2ETestEnv) SeedArticles(docs any) {
	raw, err := json.Marshal(docs)
	if err != nil {
		e.T.Fatalf("failed to encode articles: %v", err)
	}
	path := filepath.Join(e.BinaryDir, "articles.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		e.T.Fatalf("failed to write articles: %v", err)
	}
	if out, err := e.Run("articles", "import", path); err != nil {
		e.T.Fatalf("articles import failed: %v\n%s", err, out)
	}
}

// FakeProvider is an OpenAI-compatible chat completions endpoint that
// answers with a fixed summary citing the documents it was sent.
type FakeProvider struct {
	srv   *httptest.Server
	calls atomic.Int32
	fail  atomic.Bool
}

func NewFakeProvider() *FakeProvider {
	f := &FakeProvider{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *FakeProvider) URL() string { return f.srv.URL }

func (f *FakeProvider) Close() { f.srv.Close() }

func (f *FakeProvider) Calls() int { return int(f.calls.Load()) }

// SetFailing makes every chat completion return HTTP 500 while v is true.
func (f *FakeProvider) SetFailing(v bool) { f.fail.Store(v) }

func (f *FakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/models":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"gpt-4.1-mini","object":"model"},{"id":"text-embedding-3-small","object":"model"}]}`)
		return
	case "/v1/chat/completions":
	default:
		http.NotFound(w, r)
		return
	}

	f.calls.Add(1)
	if f.fail.Load() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"upstream exploded","type":"server_error"}}`)
		return
	}

	content, _ := json.Marshal(map[string]any{
		"answer_html": "<p>Most R1T owners report <strong>under 5%</strong> battery degradation.</p>",
		"results": []map[string]string{
			{"title": "R1T battery degradation report", "url": "https://riviantrackr.test/battery-report", "excerpt": "40k mile data"},
			{"title": "Battery warranty explained", "url": "https://riviantrackr.test/warranty", "excerpt": "8 years"},
			{"title": "Cold weather and degradation", "url": "https://riviantrackr.test/winter", "excerpt": "winter range"},
		},
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-e2e",
		"object": "chat.completion",
		"model":  "gpt-4.1-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": string(content)},
		}},
	})
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
