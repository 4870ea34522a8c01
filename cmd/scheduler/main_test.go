package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/music-school-scheduler/internal/auth"
	"github.com/example/music-school-scheduler/internal/config"
)

const seedYAML = `teachers:
  - id: TCH-1
    name: Clara
    specializations: [Piano]
    availability:
      - {day: monday, start: "09:00", end: "18:00"}
      - {day: tuesday, start: "09:00", end: "18:00"}
students:
  - id: STU-1
    name: Robert
    packages:
      - {id: PKG-1, instrument: Piano, hours: 10}
rooms:
  - id: ROOM-1
    name: Studio 1
    capacity: 2
`

func TestRunHashToken(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"hash-token", "-memory", "1024", "-iterations", "1", "front-desk"}, &out)
	if err != nil {
		t.Fatalf("hash-token failed: %v", err)
	}

	verifier, err := auth.NewVerifier(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("printed hash does not parse: %v", err)
	}
	if err := verifier.Verify("front-desk"); err != nil {
		t.Fatalf("expected token to verify: %v", err)
	}

	if err := run(context.Background(), []string{"hash-token"}, io.Discard); err == nil {
		t.Fatalf("expected usage error without a token")
	}
}

func testConfig(t *testing.T, token string) config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(seed, []byte(seedYAML), 0o600); err != nil {
		t.Fatalf("failed to write seed: %v", err)
	}
	hash, err := auth.HashToken(token, auth.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}
	cfg := config.Defaults()
	cfg.SQLiteDSN = filepath.Join(dir, "scheduler.db")
	cfg.SeedFile = seed
	cfg.APITokenHash = hash
	cfg.Location = time.UTC
	cfg.RateLimit = 0
	return cfg
}

func call(t *testing.T, h http.Handler, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, decoded
}

func TestServerPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "front-desk")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC) }

	first, err := newServer(ctx, cfg, logger, now)
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}

	if code, _ := call(t, first.handler, http.MethodGet, "/health", "", ""); code != http.StatusOK {
		t.Fatalf("expected open health check, got %d", code)
	}
	if code, _ := call(t, first.handler, http.MethodGet, "/activities/today", "", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	code, body := call(t, first.handler, http.MethodGet, "/teachers/TCH-1/availability", "front-desk", "")
	if code != http.StatusOK {
		t.Fatalf("expected availability, got %d: %v", code, body)
	}
	if windows, _ := body["windows"].([]any); len(windows) != 2 {
		t.Fatalf("expected Monday and Tuesday windows, got %v", body["windows"])
	}

	lesson := `{"teacher_id":"TCH-1","student_ids":["STU-1"],"room_id":"ROOM-1","instrument":"piano",` +
		`"start":"2024-03-12T10:00:00Z","duration_minutes":60}`
	code, body = call(t, first.handler, http.MethodPost, "/lessons", "front-desk", lesson)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", code, body)
	}
	id, _ := body["activity"].(map[string]any)["id"].(string)
	if !strings.HasPrefix(id, "LES-") {
		t.Fatalf("unexpected lesson id %q", id)
	}
	first.Close()

	second, err := newServer(ctx, cfg, logger, now)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer second.Close()

	code, body = call(t, second.handler, http.MethodGet, "/activities/"+id, "front-desk", "")
	if code != http.StatusOK {
		t.Fatalf("expected lesson after restart, got %d: %v", code, body)
	}

	// The restored calendars still hold the slot.
	code, body = call(t, second.handler, http.MethodPost, "/lessons", "front-desk", lesson)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for the restored slot, got %d: %v", code, body)
	}
}

func TestNewServerRejectsBadTokenHash(t *testing.T) {
	cfg := testConfig(t, "front-desk")
	cfg.APITokenHash = "plain-text"
	if _, err := newServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Now); err == nil {
		t.Fatalf("expected an error for a malformed token hash")
	}
}
