package store

import (
	"errors"
	"testing"
	"time"
)

func TestRecordSyncStartThenSuccess(t *testing.T) {
	s := newTestStore(t)

	if err := s.RecordSyncStart(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	mid, err := s.GetSyncStatusSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if mid.State != SyncStateRunning || !mid.IsIncremental {
		t.Errorf("mid summary = %+v", mid)
	}

	result := SyncResult{MessagesAdded: 3, MessagesUpdated: 1, MessagesDeleted: 0, Duration: 2 * time.Second}
	if err := s.RecordSyncSuccess(result); err != nil {
		t.Fatalf("success: %v", err)
	}

	final, err := s.GetSyncStatusSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if final.State != SyncStateIdle {
		t.Errorf("State = %q", final.State)
	}
	if final.MessagesAdded != 3 || final.MessagesUpdated != 1 {
		t.Errorf("final = %+v", final)
	}
	if final.LastDuration != 2*time.Second {
		t.Errorf("LastDuration = %v", final.LastDuration)
	}
	if final.LastSyncTime == nil {
		t.Error("expected LastSyncTime set")
	}
}

func TestRecordSyncFailure(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordSyncStart(false); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RecordSyncFailure(errors.New("boom")); err != nil {
		t.Fatalf("failure: %v", err)
	}

	summary, err := s.GetSyncStatusSummary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.State != SyncStateFailed || summary.LastError != "boom" {
		t.Errorf("summary = %+v", summary)
	}
}

func TestGetLastSyncTime_NilWhenUnset(t *testing.T) {
	s := newTestStore(t)
	tm, err := s.GetLastSyncTime()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tm != nil {
		t.Errorf("expected nil, got %v", tm)
	}
}

func TestSetLastSyncTime(t *testing.T) {
	s := newTestStore(t)
	want := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SetLastSyncTime(want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.GetLastSyncTime()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || !got.Equal(want) {
		t.Errorf("got = %v", got)
	}
}
