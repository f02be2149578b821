package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"store-uptime/internal/models"
)

// newTestStore starts a PostgreSQL container and returns a migrated Store.
// It skips the test if Docker is unavailable.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("uptime"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	st, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(st.Close)

	deadline := time.Now().Add(45 * time.Second)
	for {
		if err = st.Ping(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres not ready in time: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	if err := st.RunMigrations(ctx); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return st
}

func TestStoreSources(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2023, 1, 20, 15, 0, 0, 123000, time.UTC)
	if _, err := st.CopyObservations(ctx, []models.Observation{
		{StoreID: "100", Timestamp: ts, Status: models.StatusActive},
		{StoreID: "100", Timestamp: ts.Add(time.Hour), Status: models.StatusInactive},
	}); err != nil {
		t.Fatalf("copy observations: %v", err)
	}
	open, _ := models.ParseClock("08:30:00")
	closeAt, _ := models.ParseClock("22:00:00")
	if _, err := st.CopyBusinessHours(ctx, []models.BusinessHours{
		{StoreID: "100", Day: 3, Window: models.Window{Start: open, End: closeAt}},
		{StoreID: "200", Day: 0, Window: models.Window{Start: open, End: closeAt}},
	}); err != nil {
		t.Fatalf("copy business hours: %v", err)
	}
	if _, err := st.CopyTimezones(ctx, []models.StoreTimezone{
		{StoreID: "300", Zone: "Asia/Beirut"},
		{StoreID: "300", Zone: "America/Denver"},
	}); err != nil {
		t.Fatalf("copy timezones: %v", err)
	}

	ids, err := st.ListStoreIDs(ctx)
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if len(ids) != 3 || ids[0] != "100" || ids[1] != "200" || ids[2] != "300" {
		t.Fatalf("unexpected store ids %v", ids)
	}

	obs, err := st.StoreObservations(ctx, "100")
	if err != nil || len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d err=%v", len(obs), err)
	}

	hours, err := st.StoreBusinessHours(ctx, "100")
	if err != nil || len(hours) != 1 {
		t.Fatalf("expected 1 window, got %d err=%v", len(hours), err)
	}
	if hours[0].Day != 3 || hours[0].Start != open || hours[0].End != closeAt {
		t.Fatalf("unexpected window %+v", hours[0])
	}

	zone, found, err := st.StoreTimezone(ctx, "300")
	if err != nil || !found || zone != "Asia/Beirut" {
		t.Fatalf("expected first zone Asia/Beirut, got %q found=%v err=%v", zone, found, err)
	}
	if _, found, err := st.StoreTimezone(ctx, "100"); err != nil || found {
		t.Fatalf("expected no zone for store 100, found=%v err=%v", found, err)
	}
}

func TestStoreJobLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	job, err := st.CreateJob(ctx)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != models.JobRunning {
		t.Fatalf("expected Running, got %s", job.Status)
	}

	if err := st.FinishJob(ctx, job.ID, models.JobCompleted, nil); err != nil {
		t.Fatalf("finish job: %v", err)
	}
	msg := "late failure"
	if err := st.FinishJob(ctx, job.ID, models.JobFailed, &msg); !errors.Is(err, ErrJobNotRunning) {
		t.Fatalf("expected ErrJobNotRunning, got %v", err)
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != models.JobCompleted || got.LastError != nil {
		t.Fatalf("terminal status must not change: %+v", got)
	}

	if err := st.AppendEvent(ctx, job.ID, models.EventCompleted, "rows=0"); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := st.ListEvents(ctx, job.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 || events[0].Event != models.EventCreated || events[1].Event != models.EventCompleted {
		t.Fatalf("unexpected events %+v", events)
	}

	if _, err := st.GetJob(ctx, "1b4e28ba-2fa1-11d2-883f-0016d3cca427"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := st.FinishJob(ctx, job.ID, models.JobRunning, nil); err == nil {
		t.Fatalf("expected error for non-terminal status")
	}
}

func TestRunMigrationsRecordsFiles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.RunMigrations(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	applied, err := st.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("applied migrations: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_init.sql" || applied[1] != "002_report_jobs.sql" {
		t.Fatalf("expected each file recorded once, got %v", applied)
	}
}
