//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// Runs against a live bridge (E2E_BASE_URL) whose world is reachable on
// E2E_WORLD_PORT, e.g. `agentbridge serve` in sim mode.
func TestBridgeAPI_SessionLifecycle(t *testing.T) {
	baseURL := strings.TrimRight(envOr("E2E_BASE_URL", "http://localhost:3000"), "/")
	port, err := strconv.Atoi(envOr("E2E_WORLD_PORT", "25565"))
	if err != nil {
		t.Fatalf("E2E_WORLD_PORT: %v", err)
	}
	client := &http.Client{Timeout: 60 * time.Second}

	t.Run("step before start is rejected", func(t *testing.T) {
		mustJSON(t, client, http.MethodPost, baseURL+"/stop", nil)
		status, body := mustJSON(t, client, http.MethodPost, baseURL+"/step", map[string]any{"code": "1"})
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d body=%s", status, string(body))
		}
	})

	t.Run("programs endpoints", func(t *testing.T) {
		status, indexBody, err := doRequest(client, http.MethodGet, baseURL+"/programs/index.json", nil)
		if err != nil {
			t.Fatalf("programs index request: %v", err)
		}
		if status != http.StatusOK {
			t.Fatalf("programs index status=%d body=%s", status, string(indexBody))
		}
		var index map[string]any
		if err := json.Unmarshal(indexBody, &index); err != nil {
			t.Fatalf("unmarshal programs index: %v body=%s", err, string(indexBody))
		}
	})

	t.Run("start step runs stop", func(t *testing.T) {
		status, startBody := mustJSON(t, client, http.MethodPost, baseURL+"/start", map[string]any{
			"port":      port,
			"waitTicks": 5,
			"reset":     "hard",
		})
		if status != http.StatusOK {
			t.Fatalf("start status=%d body=%s", status, string(startBody))
		}
		if !hasEventKind(t, startBody, "observe") {
			t.Fatalf("start should end with an observation: %s", string(startBody))
		}

		status, stepBody := mustJSON(t, client, http.MethodPost, baseURL+"/step", map[string]any{
			"code": "await world.chat('e2e hello');",
		})
		if status != http.StatusOK {
			t.Fatalf("step status=%d body=%s", status, string(stepBody))
		}
		if !hasEventKind(t, stepBody, "onChat") {
			t.Fatalf("step should echo chat: %s", string(stepBody))
		}

		status, faultBody := mustJSON(t, client, http.MethodPost, baseURL+"/step", map[string]any{
			"code": "throw new Error('boom');",
		})
		if status != http.StatusOK {
			t.Fatalf("faulting step status=%d body=%s", status, string(faultBody))
		}
		if !hasEventKind(t, faultBody, "onError") {
			t.Fatalf("faulting step should report onError: %s", string(faultBody))
		}

		status, runsBody := mustJSON(t, client, http.MethodGet, baseURL+"/runs?limit=2", nil)
		if status != http.StatusOK {
			t.Fatalf("runs status=%d body=%s", status, string(runsBody))
		}
		var listed map[string]any
		if err := json.Unmarshal(runsBody, &listed); err != nil {
			t.Fatalf("unmarshal runs: %v", err)
		}
		if len(asSlice(listed["runs"])) == 0 {
			t.Fatalf("expected recorded runs: %s", string(runsBody))
		}

		status, stopBody := mustJSON(t, client, http.MethodPost, baseURL+"/stop", nil)
		if status != http.StatusOK {
			t.Fatalf("stop status=%d body=%s", status, string(stopBody))
		}
	})
}

func hasEventKind(t *testing.T, body []byte, kind string) bool {
	t.Helper()
	var events [][]json.RawMessage
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("decode events: %v body=%s", err, string(body))
	}
	for _, e := range events {
		var k string
		if len(e) == 2 && json.Unmarshal(e[0], &k) == nil && k == kind {
			return true
		}
	}
	return false
}

func mustJSON(t *testing.T, client *http.Client, method, url string, body any) (int, []byte) {
	t.Helper()
	status, respBody, err := doRequest(client, method, url, body)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return status, respBody
}

// doRequest retries transport errors only; the bridge's 5xx answers are
// part of what the tests assert.
func doRequest(client *http.Client, method, url string, body any) (int, []byte, error) {
	var payloadBytes []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		payloadBytes = b
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var payload io.Reader
		if len(payloadBytes) > 0 {
			payload = bytes.NewReader(payloadBytes)
		}
		req, err := http.NewRequest(method, url, payload)
		if err != nil {
			return 0, nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}
		return resp.StatusCode, respBody, nil
	}
	return 0, nil, lastErr
}

func envOr(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}
