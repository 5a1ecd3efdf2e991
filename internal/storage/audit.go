package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/guregu/null/v6"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// auditRecord is one NDJSON line of the audit log.
type auditRecord struct {
	TS    string     `json:"ts"`
	Coin  string     `json:"coin"`
	Price float64    `json:"price"`
	Pct   null.Float `json:"pct"`
}

// AuditLog appends every ingested quote as one JSON object per line. It is a
// human-readable trail only; nothing reads it back on the forecast path.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog returns an audit log writing to path. The file and its parent
// directory are created on first append.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the log file location.
func (a *AuditLog) Path() string {
	return a.path
}

// Append writes one line per quote. Lines from concurrent callers never
// interleave.
func (a *AuditLog) Append(quotes []models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, q := range quotes {
		rec := auditRecord{
			TS:    q.Timestamp.UTC().Format(time.RFC3339Nano),
			Coin:  q.AssetID,
			Price: q.Price,
			Pct:   q.ChangePct,
		}
		if err := enc.Encode(rec); err != nil {
			return NewStorageError("audit", "", "", fmt.Errorf("failed to encode quote %s: %w", q.String(), err))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return NewStorageError("audit", "", "", fmt.Errorf("failed to create audit directory: %w", err))
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return NewStorageError("audit", "", "", fmt.Errorf("failed to open audit log: %w", err))
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return NewStorageError("audit", "", "", fmt.Errorf("failed to write audit log: %w", err))
	}
	return f.Close()
}

// ReadAudit decodes audit lines back into quotes, skipping blank lines.
func ReadAudit(r io.Reader) ([]models.Quote, error) {
	var out []models.Quote
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec auditRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("audit line %d: %w", line, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec.TS)
		if err != nil {
			return nil, fmt.Errorf("audit line %d: invalid ts: %w", line, err)
		}
		out = append(out, models.Quote{Timestamp: ts.UTC(), AssetID: rec.Coin, Price: rec.Price, ChangePct: rec.Pct})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
