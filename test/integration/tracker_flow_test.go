/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package integration exercises the fully wired server over HTTP.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/config"
	"github.com/friendsincode/vakt/internal/logging"
	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/server"
	"github.com/friendsincode/vakt/internal/store"
)

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()

	t.Setenv("VAKT_ENV", "test")
	t.Setenv("VAKT_DB_BACKEND", "sqlite")
	t.Setenv("VAKT_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("VAKT_JWT_SIGNING_KEY", "integration-test-key")
	t.Setenv("VAKT_METRICS_BIND", "127.0.0.1:0")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("test")

	srv, err := server.New(cfg, logger)
	if err != nil {
		t.Fatalf("initialize server: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("close server: %v", err)
		}
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func seedWorker(t *testing.T, srv *server.Server, email, password string) models.Worker {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	workers := store.NewWorkers(srv.DB())
	worker, err := workers.Create(context.Background(), models.Worker{
		Email:    email,
		Password: hash,
	})
	if err != nil {
		t.Fatalf("seed worker: %v", err)
	}
	return worker
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestTrackerFlowEndToEnd(t *testing.T) {
	srv, ts := newTestServer(t)
	seedWorker(t, srv, "field@example.com", "hunter2")

	c := &client{t: t, base: ts.URL}

	// Health is public.
	resp, body := c.do(http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", resp.StatusCode, body)
	}

	// Actions without a token are rejected.
	resp, _ = c.do(http.MethodPost, "/api/v1/tracker/clock-in", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Login.
	resp, body = c.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "field@example.com", "password": "hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("missing token: %v", body)
	}
	c.token = token

	// Full lifecycle: clock in, break, back, out.
	resp, body = c.do(http.MethodPost, "/api/v1/tracker/clock-in", nil)
	if resp.StatusCode != http.StatusOK || body["state"] != "on_regular_shift" {
		t.Fatalf("clock-in: %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(http.MethodPost, "/api/v1/tracker/clock-in", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double clock-in: expected 409, got %d %v", resp.StatusCode, body)
	}

	time.Sleep(10 * time.Millisecond)
	resp, body = c.do(http.MethodPost, "/api/v1/tracker/break/start", nil)
	if resp.StatusCode != http.StatusOK || body["state"] != "on_break" {
		t.Fatalf("break start: %d %v", resp.StatusCode, body)
	}

	time.Sleep(10 * time.Millisecond)
	resp, body = c.do(http.MethodPost, "/api/v1/tracker/break/end", nil)
	if resp.StatusCode != http.StatusOK || body["state"] != "on_regular_shift" {
		t.Fatalf("break end: %d %v", resp.StatusCode, body)
	}

	time.Sleep(10 * time.Millisecond)
	resp, body = c.do(http.MethodPost, "/api/v1/tracker/clock-out", nil)
	if resp.StatusCode != http.StatusOK || body["state"] != "no_active_shift" {
		t.Fatalf("clock-out: %d %v", resp.StatusCode, body)
	}

	// Current reflects the gateway.
	resp, body = c.do(http.MethodGet, "/api/v1/tracker/current", nil)
	if resp.StatusCode != http.StatusOK || body["state"] != "no_active_shift" {
		t.Fatalf("current: %d %v", resp.StatusCode, body)
	}

	// All three blocks were persisted and closed.
	var count int64
	if err := srv.DB().Model(&models.TimeBlock{}).Where("end_time IS NOT NULL").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 closed blocks, got %d", count)
	}
}
