package hooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// AuditEntry is one immutable record in the audit log.
type AuditEntry struct {
	ID          string    `json:"id"`
	Event       EventName `json:"event"`
	UseCase     string    `json:"use_case"`
	FlagID      string    `json:"flag_id,omitempty"`
	Dimension   string    `json:"dimension,omitempty"`
	Level       string    `json:"level,omitempty"`
	Status      string    `json:"status,omitempty"`
	Count       int       `json:"count,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ContentHash string    `json:"content_hash"`
}

// AuditQuery filters the audit log. Zero fields match everything.
type AuditQuery struct {
	Event   EventName
	UseCase string
	Since   time.Time
	Until   time.Time
}

// AuditLogger records every received event in an append-only in-memory log.
// It never vetoes; subscribe it in the notify phase.
type AuditLogger struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewAuditLogger creates an empty audit logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// OnEvent implements Hook.
func (l *AuditLogger) OnEvent(e Event) error {
	entry := AuditEntry{
		ID:        uuid.New().String(),
		Event:     e.Name,
		UseCase:   e.UseCase,
		Count:     e.Count,
		Timestamp: e.Timestamp,
	}
	if e.Flag != nil {
		entry.FlagID = e.Flag.ID
		entry.Dimension = e.Flag.Dimension.Key
		entry.Level = e.Flag.Level.String()
		entry.Status = string(e.Flag.Status)
	}

	hash, err := contentHash(entry)
	if err != nil {
		return err
	}
	entry.ContentHash = hash

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// Query returns entries matching the filter, in append order.
func (l *AuditLogger) Query(q AuditQuery) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []AuditEntry
	for _, e := range l.entries {
		if q.Event != "" && e.Event != q.Event {
			continue
		}
		if q.UseCase != "" && e.UseCase != q.UseCase {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && e.Timestamp.After(q.Until) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of recorded entries.
func (l *AuditLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// contentHash computes a sha256 over the canonical (RFC 8785) JSON form of
// the entry, excluding the hash field itself.
func contentHash(entry AuditEntry) (string, error) {
	entry.ContentHash = ""
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
