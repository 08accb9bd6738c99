package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/vakt/internal/events"
	"github.com/friendsincode/vakt/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestLogAndRecent(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	workerID := "worker-1"
	for i := 0; i < 3; i++ {
		err := svc.Log(ctx, &models.AuditLog{
			Timestamp:  time.Date(2026, 1, 10, 8+i, 0, 0, 0, time.UTC),
			WorkerID:   &workerID,
			Action:     models.AuditActionClockIn,
			ResourceID: "block-1",
			Details:    map[string]any{"n": i},
		})
		if err != nil {
			t.Fatalf("log entry %d: %v", i, err)
		}
	}

	entries, err := svc.Recent(ctx, workerID, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[2].Timestamp) {
		t.Fatal("expected newest first ordering")
	}
	if entries[0].ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestStartRecordsPublishedEvents(t *testing.T) {
	db := testDB(t)
	bus := events.NewBus()
	svc := NewService(db, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	// Give the service time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(events.EventShiftStarted, events.Payload{
		"worker_id": "worker-1",
		"block_id":  "block-1",
		"category":  "shift",
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		var count int64
		if err := db.Model(&models.AuditLog{}).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for audit entry")
		}
		time.Sleep(20 * time.Millisecond)
	}

	var entry models.AuditLog
	if err := db.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Action != models.AuditActionClockIn {
		t.Fatalf("unexpected action: %s", entry.Action)
	}
	if entry.WorkerID == nil || *entry.WorkerID != "worker-1" {
		t.Fatalf("unexpected worker: %+v", entry.WorkerID)
	}
	if entry.ResourceID != "block-1" {
		t.Fatalf("unexpected resource: %s", entry.ResourceID)
	}
	if entry.Details["category"] != "shift" {
		t.Fatalf("expected category detail, got %+v", entry.Details)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}
