package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/vakt/internal/audit"
	"github.com/friendsincode/vakt/internal/auth"
	"github.com/friendsincode/vakt/internal/cache"
	"github.com/friendsincode/vakt/internal/clock"
	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
	"github.com/friendsincode/vakt/internal/segment"
	"github.com/friendsincode/vakt/internal/shift"
	"github.com/friendsincode/vakt/internal/store"
)

var testSecret = []byte("test-signing-key")

type testEnv struct {
	handler http.Handler
	db      *gorm.DB
	clk     *clock.Fake
	bus     *events.Bus
	worker  models.Worker
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, nil)
}

func newTestEnvWithCache(t *testing.T, cacheSvc *cache.Cache) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Worker{}, &models.Job{}, &models.TimeBlock{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	clk := clock.NewFake(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	bus := events.NewBus()
	blocks := store.NewTimeBlocks(db, logger)
	workers := store.NewWorkers(db)
	registry := shift.NewRegistry(blocks, clk, segment.DefaultWindows(), bus, logger)
	auditSvc := audit.NewService(db, bus, logger)

	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	worker, err := workers.Create(context.Background(), models.Worker{
		Email:    "worker@example.com",
		Password: hash,
	})
	if err != nil {
		t.Fatalf("create worker: %v", err)
	}

	token, err := auth.Issue(testSecret, auth.Claims{
		WorkerID: worker.ID,
		Roles:    []string{string(models.RoleWorker)},
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	a := New(db, testSecret, registry, blocks, workers, auditSvc, cacheSvc, bus, clk, 1.5, logger)
	router := chi.NewRouter()
	a.Routes(router)

	return &testEnv{handler: router, db: db, clk: clk, bus: bus, worker: worker, token: token}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeTracker(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "worker@example.com", "password": "hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.WorkerID != env.worker.ID {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "worker@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tracker/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "no_active_shift" {
		t.Fatalf("expected no_active_shift, got %v", state)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clock-in: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "on_regular_shift" {
		t.Fatalf("expected on_regular_shift, got %v", state)
	}

	// Second clock-in is a lifecycle violation.
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("double clock-in: expected 409, got %d", rec.Code)
	}
	if code := decodeTracker(t, rec)["error"]; code != "action_not_allowed" {
		t.Fatalf("unexpected error code: %v", code)
	}

	env.clk.Advance(2 * time.Hour)
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/break/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("break start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "on_break" {
		t.Fatalf("expected on_break, got %v", state)
	}

	env.clk.Advance(30 * time.Minute)
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/break/end", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("break end: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env.clk.Advance(time.Hour)
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/clock-out", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clock-out: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "no_active_shift" {
		t.Fatalf("expected no_active_shift, got %v", state)
	}

	var count int64
	if err := env.db.Model(&models.TimeBlock{}).Where("end_time IS NOT NULL").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 closed blocks (shift, break, shift), got %d", count)
	}
}

func TestOvertimeDefaultCoefficient(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-in: %d", rec.Code)
	}
	env.clk.Advance(8 * time.Hour)
	rec := env.do(t, http.MethodPost, "/api/v1/tracker/overtime/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overtime: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeTracker(t, rec)
	current, ok := resp["current_block"].(map[string]any)
	if !ok {
		t.Fatalf("missing current_block: %v", resp)
	}
	if current["coefficient"] != 1.5 {
		t.Fatalf("expected default 1.5 coefficient, got %v", current["coefficient"])
	}

	// Explicit coefficient overrides the default but stays bounded.
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/clock-out", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clock-out: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-in: %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/overtime/start", map[string]float64{"coefficient": 99})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range coefficient, got %d", rec.Code)
	}
}

func TestStartJobValidatesJob(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-in: %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/tracker/jobs/start", map[string]string{"job_id": "no-such-job"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d: %s", rec.Code, rec.Body.String())
	}

	job := models.Job{ID: "job-1", Number: "J-100", Title: "Install", Status: models.JobBooked}
	if err := env.db.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/tracker/jobs/start", map[string]string{"job_id": "job-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start job: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "on_job_shift" {
		t.Fatalf("expected on_job_shift, got %v", state)
	}

	env.clk.Advance(time.Hour)
	rec = env.do(t, http.MethodPost, "/api/v1/tracker/jobs/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete job: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeTracker(t, rec)["state"]; state != "on_regular_shift" {
		t.Fatalf("expected on_regular_shift after completion, got %v", state)
	}

	var stored models.Job
	if err := env.db.First(&stored, "id = ?", "job-1").Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Status != models.JobCompleted {
		t.Fatalf("expected completed job, got %s", stored.Status)
	}
}

func TestTimesheetAndSummary(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-in: %d", rec.Code)
	}
	env.clk.Advance(4 * time.Hour)
	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-out", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-out: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/timesheet/?from=2026-01-10&to=2026-01-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timesheet: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var blocks []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &blocks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}

	rec = env.do(t, http.MethodGet, "/api/v1/timesheet/summary?from=2026-01-10&to=2026-01-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	var summary timesheetSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Blocks != 1 {
		t.Fatalf("expected 1 closed block, got %d", summary.Blocks)
	}
	if summary.WeightedHours != 4 {
		t.Fatalf("expected 4 weighted hours, got %v", summary.WeightedHours)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/timesheet/?from=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", rec.Code)
	}
}

func TestWorkersEndpointsRequireRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/workers/", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for worker role, got %d", rec.Code)
	}

	adminToken, err := auth.Issue(testSecret, auth.Claims{
		WorkerID: env.worker.ID,
		Roles:    []string{string(models.RoleAdmin)},
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	env.token = adminToken

	rec = env.do(t, http.MethodGet, "/api/v1/workers/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/workers/", workerCreateRequest{
		Email:    fmt.Sprintf("new-%d@example.com", time.Now().UnixNano()),
		Password: "s3cret",
		Role:     "worker",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWorkerCreatePublishesWorkerUpdated(t *testing.T) {
	env := newTestEnv(t)

	adminToken, err := auth.Issue(testSecret, auth.Claims{
		WorkerID: env.worker.ID,
		Roles:    []string{string(models.RoleAdmin)},
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	env.token = adminToken

	sub := env.bus.Subscribe(events.EventWorkerUpdated)
	defer env.bus.Unsubscribe(events.EventWorkerUpdated, sub)

	rec := env.do(t, http.MethodPost, "/api/v1/workers/", workerCreateRequest{
		Email:    "fresh@example.com",
		Password: "s3cret",
		Role:     "worker",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created workerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	select {
	case payload := <-sub:
		if payload["worker_id"] != created.ID {
			t.Errorf("event worker_id = %v, want %s", payload["worker_id"], created.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no worker_updated event published")
	}
}

func TestTrackerCurrentWithUnavailableCache(t *testing.T) {
	// An unreachable Redis degrades to a disabled cache: every lookup
	// misses and the handler must fall through to the gateway.
	cfg := cache.DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	cacheSvc, err := cache.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	defer cacheSvc.Close()

	env := newTestEnvWithCache(t, cacheSvc)

	if rec := env.do(t, http.MethodPost, "/api/v1/tracker/clock-in", nil); rec.Code != http.StatusOK {
		t.Fatalf("clock-in: %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/tracker/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("current: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeTracker(t, rec)
	if resp["state"] != "on_regular_shift" {
		t.Fatalf("expected on_regular_shift, got %v", resp["state"])
	}
	if _, ok := resp["current_block"].(map[string]any); !ok {
		t.Fatalf("missing current_block: %v", resp)
	}
}

func TestCachedBlockRoundTrip(t *testing.T) {
	jobID := "job-5"
	end := time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)
	block := models.TimeBlock{
		ID:          "block-1",
		WorkerID:    "worker-1",
		JobID:       &jobID,
		StartTime:   time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		EndTime:     &end,
		Category:    models.CategoryOvertime,
		Type:        models.TypeJob,
		Coefficient: 1.5,
		Status:      models.StatusPending,
		Notes:       "Day 1 (09:00 - 17:00)",
	}

	got := fromCachedBlock(toCachedBlock(block))
	if got != block {
		t.Errorf("round trip changed the block:\n got %+v\nwant %+v", got, block)
	}
	if state := shift.StateForBlock(&got); state != shift.OnOvertime {
		t.Errorf("state from cached block = %s, want on_overtime", state)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tracker/clock-in", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
