package schedule

import (
	"fmt"
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	s, err := Parse(`{"kind":"cron","cron_expr":"0 9 * * *"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected schedule: %+v", s)
	}
}

func TestNextRunCron(t *testing.T) {
	next := NextRun(`{"kind":"cron","cron_expr":"* * * * *"}`)
	if next == nil {
		t.Fatal("expected next run time, got nil")
	}
	if next.Before(time.Now()) {
		t.Error("expected next run in the future")
	}
}

func TestNextRunInterval(t *testing.T) {
	next := NextRun(`{"kind":"interval","interval_ms":60000}`)
	if next == nil {
		t.Fatal("expected next run time, got nil")
	}
	diff := time.Until(*next)
	if diff < 50*time.Second || diff > 70*time.Second {
		t.Errorf("expected next run ~1m away, got %s", diff)
	}
}

func TestNextRunOncePast(t *testing.T) {
	past := time.Now().Add(-time.Hour).UnixMilli()
	next := NextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, past))
	if next != nil {
		t.Errorf("expected nil for past one-off schedule, got %v", next)
	}
}

func TestNextRunOnceFuture(t *testing.T) {
	future := time.Now().Add(time.Hour).UnixMilli()
	next := NextRun(fmt.Sprintf(`{"kind":"once","at_ms":%d}`, future))
	if next == nil {
		t.Fatal("expected next run time, got nil")
	}
}

func TestNormalizeBareCron(t *testing.T) {
	normalized, err := Normalize("*/5 * * * *")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := Parse(normalized)
	if err != nil {
		t.Fatalf("parse normalized: %v", err)
	}
	if s.Kind != "cron" || s.CronExpr != "*/5 * * * *" {
		t.Errorf("unexpected normalized schedule: %+v", s)
	}
}

func TestNormalizeInvalidCron(t *testing.T) {
	if _, err := Normalize("not a cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if _, err := Normalize(`{"kind":"cron","cron_expr":"99 99 * * *"}`); err == nil {
		t.Error("expected error for invalid cron field")
	}
}

func TestNormalizeInvalidInterval(t *testing.T) {
	if _, err := Normalize(`{"kind":"interval","interval_ms":0}`); err == nil {
		t.Error("expected error for zero interval")
	}
}
