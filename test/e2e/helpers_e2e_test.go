//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// getenv returns the value of the environment variable k or def if empty.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080/v1")

// requireAppReady skips the test when the server under test is not reachable.
func requireAppReady(t *testing.T, client *http.Client) {
	t.Helper()
	healthz := strings.TrimSuffix(baseURL, "/v1") + "/healthz"
	resp, err := client.Get(healthz)
	if err != nil {
		t.Skipf("app not available at %s; skipping E2E", healthz)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("app not healthy (%d); skipping E2E", resp.StatusCode)
	}
}

// postJSON posts body to path (relative to baseURL) and decodes the JSON reply.
func postJSON(t *testing.T, client *http.Client, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// getJSON fetches path and decodes the JSON reply.
func getJSON(t *testing.T, client *http.Client, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// phaseOf digs current_phase out of a session envelope.
func phaseOf(t *testing.T, body map[string]any) string {
	t.Helper()
	state, ok := body["interview_state"].(map[string]any)
	require.True(t, ok, "interview_state missing: %#v", body)
	phase, _ := state["current_phase"].(string)
	return phase
}

func newClient() *http.Client { return &http.Client{Timeout: 10 * time.Second} }
