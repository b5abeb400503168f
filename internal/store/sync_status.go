package store

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// sync_status keys, per §6's sync-status key/value contract.
const (
	keySyncState           = "sync_state"
	keyLastSyncTime        = "last_sync_time"
	keyLastSyncStartTime   = "last_sync_start_time"
	keyLastSyncEndTime     = "last_sync_end_time"
	keyLastSyncError       = "last_sync_error"
	keyLastSyncAdded       = "last_sync_messages_added"
	keyLastSyncUpdated     = "last_sync_messages_updated"
	keyLastSyncDeleted     = "last_sync_messages_deleted"
	keyLastSyncDuration    = "last_sync_duration"
	keyLastSyncIncremental = "last_sync_is_incremental"
)

// SyncState values stored under keySyncState.
const (
	SyncStateIdle    = "idle"
	SyncStateRunning = "running"
	SyncStateFailed  = "failed"
)

// SyncResult summarizes a completed sync run.
type SyncResult struct {
	MessagesAdded   int
	MessagesUpdated int
	MessagesDeleted int
	Duration        time.Duration
	IsIncremental   bool
}

// SyncStatusSummary is the sync_status table rendered as a struct.
type SyncStatusSummary struct {
	State           string
	LastSyncTime    *time.Time
	LastStartTime   *time.Time
	LastEndTime     *time.Time
	LastError       string
	MessagesAdded   int
	MessagesUpdated int
	MessagesDeleted int
	LastDuration    time.Duration
	IsIncremental   bool
}

func (s *Store) setSyncKV(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_status (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) getSyncKV(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM sync_status WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// RecordSyncStart marks a sync as running and records its start time.
func (s *Store) RecordSyncStart(isIncremental bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	incr := "0"
	if isIncremental {
		incr = "1"
	}
	for k, v := range map[string]string{
		keySyncState:           SyncStateRunning,
		keyLastSyncStartTime:   now,
		keyLastSyncIncremental: incr,
	} {
		if err := s.setSyncKV(k, v); err != nil {
			return eris.Wrap(err, "store: record sync start")
		}
	}
	return nil
}

// RecordSyncSuccess records a completed sync's results and returns to idle.
func (s *Store) RecordSyncSuccess(result SyncResult) error {
	now := time.Now().UTC().Format(time.RFC3339)
	kv := map[string]string{
		keySyncState:        SyncStateIdle,
		keyLastSyncTime:     now,
		keyLastSyncEndTime:  now,
		keyLastSyncAdded:    strconv.Itoa(result.MessagesAdded),
		keyLastSyncUpdated:  strconv.Itoa(result.MessagesUpdated),
		keyLastSyncDeleted:  strconv.Itoa(result.MessagesDeleted),
		keyLastSyncDuration: result.Duration.String(),
		keyLastSyncError:    "",
	}
	for k, v := range kv {
		if err := s.setSyncKV(k, v); err != nil {
			return eris.Wrap(err, "store: record sync success")
		}
	}
	return nil
}

// RecordSyncFailure records a failed sync's error and marks state failed.
func (s *Store) RecordSyncFailure(syncErr error) error {
	now := time.Now().UTC().Format(time.RFC3339)
	kv := map[string]string{
		keySyncState:       SyncStateFailed,
		keyLastSyncEndTime: now,
		keyLastSyncError:   syncErr.Error(),
	}
	for k, v := range kv {
		if err := s.setSyncKV(k, v); err != nil {
			return eris.Wrap(err, "store: record sync failure")
		}
	}
	return nil
}

// GetSyncStatusSummary reads every sync_status key into a summary struct.
func (s *Store) GetSyncStatusSummary() (*SyncStatusSummary, error) {
	summary := &SyncStatusSummary{State: SyncStateIdle}

	if v, ok, err := s.getSyncKV(keySyncState); err != nil {
		return nil, err
	} else if ok {
		summary.State = v
	}
	if v, ok, err := s.getSyncKV(keyLastSyncTime); err != nil {
		return nil, err
	} else if ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			summary.LastSyncTime = &t
		}
	}
	if v, ok, err := s.getSyncKV(keyLastSyncStartTime); err != nil {
		return nil, err
	} else if ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			summary.LastStartTime = &t
		}
	}
	if v, ok, err := s.getSyncKV(keyLastSyncEndTime); err != nil {
		return nil, err
	} else if ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			summary.LastEndTime = &t
		}
	}
	if v, ok, err := s.getSyncKV(keyLastSyncError); err != nil {
		return nil, err
	} else if ok {
		summary.LastError = v
	}
	if v, ok, err := s.getSyncKV(keyLastSyncAdded); err != nil {
		return nil, err
	} else if ok {
		summary.MessagesAdded, _ = strconv.Atoi(v)
	}
	if v, ok, err := s.getSyncKV(keyLastSyncUpdated); err != nil {
		return nil, err
	} else if ok {
		summary.MessagesUpdated, _ = strconv.Atoi(v)
	}
	if v, ok, err := s.getSyncKV(keyLastSyncDeleted); err != nil {
		return nil, err
	} else if ok {
		summary.MessagesDeleted, _ = strconv.Atoi(v)
	}
	if v, ok, err := s.getSyncKV(keyLastSyncDuration); err != nil {
		return nil, err
	} else if ok {
		summary.LastDuration, _ = time.ParseDuration(v)
	}
	if v, ok, err := s.getSyncKV(keyLastSyncIncremental); err != nil {
		return nil, err
	} else if ok {
		summary.IsIncremental = v == "1"
	}

	return summary, nil
}

// GetLastSyncTime returns the last successful sync time, if recorded.
func (s *Store) GetLastSyncTime() (*time.Time, error) {
	v, ok, err := s.getSyncKV(keyLastSyncTime)
	if err != nil {
		return nil, eris.Wrap(err, "store: get last sync time")
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, nil
	}
	return &t, nil
}

// SetLastSyncTime directly overrides the last sync time (used by tests and
// manual recovery, not by the sync engine itself).
func (s *Store) SetLastSyncTime(t time.Time) error {
	return s.setSyncKV(keyLastSyncTime, t.UTC().Format(time.RFC3339))
}
