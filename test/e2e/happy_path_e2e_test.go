//go:build e2e

package e2e_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_HappyPath_InterviewFlow drives one session from initialize to
// completed. The target application (with a seeded question plan) comes from
// E2E_APPLICATION_ID; the test skips when it is not provisioned.
func TestE2E_HappyPath_InterviewFlow(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping E2E tests in short mode")
	}
	client := newClient()
	requireAppReady(t, client)

	appID := getenv("E2E_APPLICATION_ID", "")
	if appID == "" {
		t.Skip("E2E_APPLICATION_ID not set; skipping happy path E2E")
	}

	code, body := postJSON(t, client, "/interviews/"+appID+"/initialize", nil)
	if code == http.StatusNotFound {
		t.Skipf("application %s not seeded; skipping", appID)
	}
	if code == http.StatusConflict {
		// A previous run left a session behind; resume it instead.
		code, body = postJSON(t, client, "/interviews/"+appID+"/initialize", map[string]any{"resume": true})
	}
	require.Equal(t, http.StatusOK, code, "initialize: %#v", body)
	require.NotEmpty(t, body["response"], "greeting expected")

	phase := phaseOf(t, body)
	// Answer until the engine reports completion, with a hard cap so a broken
	// state machine cannot loop forever.
	for i := 0; phase != "completed" && i < 64; i++ {
		reply := fmt.Sprintf("Here is my detailed answer number %d, covering the question end to end.", i+1)
		if phase == "final_questions" {
			reply = "No questions from me, thank you."
		}
		code, body = postJSON(t, client, "/interviews/"+appID+"/responses", map[string]any{"response": reply})
		require.Equal(t, http.StatusOK, code, "respond: %#v", body)
		phase = phaseOf(t, body)
	}
	require.Equal(t, "completed", phase, "interview did not complete")

	code, body = getJSON(t, client, "/interviews/"+appID)
	require.Equal(t, http.StatusOK, code)
	history, ok := body["conversation_history"].([]any)
	require.True(t, ok, "conversation_history missing: %#v", body)
	assert.GreaterOrEqual(t, len(history), 3)

	// Completed sessions reject further responses.
	code, body = postJSON(t, client, "/interviews/"+appID+"/responses", map[string]any{"response": "one more"})
	assert.Equal(t, http.StatusConflict, code, "expected INVALID_STATE: %#v", body)
}
