package policy

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kestrelrun/genie/internal/log"
)

// AuditLog appends AuditEntry records to a JSONL file. Unlike the teacher's
// ring-buffered session writer, every Append flushes and syncs before
// returning: the engine's delivery contract requires the audit entry be
// durably persisted *before* an approval is delivered, so there is no room
// for a background flush interval here.
type AuditLog struct {
	mu         sync.Mutex
	file       *os.File
	writeErrors atomic.Int64
}

// NewAuditLog opens (creating if necessary) path for append and returns an
// AuditLog backed by it.
func NewAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // audit log is operator-local state
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &AuditLog{file: f}, nil
}

// Append writes entry as one JSON line, flushing and syncing to disk
// before returning. A failure here must cause the caller (the engine) to
// downgrade an approve decision to escalate — never approve without audit.
func (a *AuditLog) Append(entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(data); err != nil {
		a.writeErrors.Add(1)
		log.ErrorErr(log.CatPolicy, "audit append failed", err)
		return fmt.Errorf("writing audit entry: %w", err)
	}
	if err := a.file.Sync(); err != nil {
		a.writeErrors.Add(1)
		log.ErrorErr(log.CatPolicy, "audit sync failed", err)
		return fmt.Errorf("syncing audit log: %w", err)
	}
	return nil
}

// WriteErrors returns the total count of failed Append calls, for
// diagnostics.
func (a *AuditLog) WriteErrors() int64 {
	return a.writeErrors.Load()
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// ReadAuditEntries reads every entry from the JSONL audit log at path, in
// append order. A missing file yields an empty slice rather than an error,
// matching the tolerant-missing-file idiom used by this harness's other
// readers. Malformed lines are skipped with a warning rather than aborting
// the read, the same tolerance the event tailer applies to malformed event
// lines.
func ReadAuditEntries(path string) ([]AuditEntry, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-controlled state
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			log.Warn(log.CatPolicy, "skipping malformed audit line", "path", path, "error", err.Error())
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scanning audit log %s: %w", path, err)
	}
	return entries, nil
}
