package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "test-session")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(filepath.Join(dir, "sessions", "test-session.jsonl")); err != nil {
		t.Errorf("session log not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "errors.jsonl")); err != nil {
		t.Errorf("error log not created: %v", err)
	}
}

func TestLog_WritesSessionEvents(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "s1")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := logger.Info(CategoryEditor, "revision_applied", "applied revision", map[string]any{
		"page": "overview",
	}); err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	events, err := ReadRecentEvents(filepath.Join(dir, "sessions", "s1.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Category != CategoryEditor {
		t.Errorf("Category = %v, want %v", events[0].Category, CategoryEditor)
	}
	if events[0].SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1", events[0].SessionID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("Timestamp should be stamped on write")
	}
}

func TestLog_ErrorsDuplicatedToErrorLog(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "s2")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Error(CategoryStorage, "persist_failed", "write failed", nil)
	logger.Info(CategoryStorage, "persist_ok", "write ok", nil)
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "errors.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("error log has %d events, want 1", len(events))
	}
	if events[0].EventType != "persist_failed" {
		t.Errorf("EventType = %q, want persist_failed", events[0].EventType)
	}
}

func TestMinLevel_FiltersDebug(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "s3")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug(CategoryProvider, "chunk", "got chunk", nil)
	logger.SetMinLevel(LevelDebug)
	logger.Debug(CategoryProvider, "chunk", "got chunk", nil)
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "sessions", "s3.jsonl"), 10)
	if err != nil {
		t.Fatalf("ReadRecentEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (debug filtered before SetMinLevel)", len(events))
	}
}

func TestSetPageID_AppliedToEvents(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "s4")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.SetPageID("page-3")
	logger.Info(CategorySession, "opened", "session opened", nil)
	logger.Close()

	events, _ := ReadRecentEvents(filepath.Join(dir, "sessions", "s4.jsonl"), 10)
	if len(events) != 1 || events[0].PageID != "page-3" {
		t.Fatalf("PageID not applied: %+v", events)
	}
}
