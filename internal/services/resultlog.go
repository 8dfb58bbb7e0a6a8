package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"goldtrio/internal/models"
)

// logTimeLayout is the timestamp format of a result row.
const logTimeLayout = "2006-01-02 15:04:05"

// utf8BOM keeps the exported CSV readable in Excel.
var utf8BOM = []byte("\xef\xbb\xbf")

// logHeader is the fixed column layout of the result log.
var logHeader = []string{"時間", "Email", "遊戲結果", "獎項", "優惠碼"}

// ResultLog is the append-only record of finished rounds, stored as a CSV
// file. The first write creates the file with a header; every append is
// serialized under a mutex so concurrent finishes cannot interleave rows. An
// existing file with a different column layout is reported as a schema
// conflict and never overwritten without an explicit Recover call.
type ResultLog struct {
	mu   sync.Mutex
	path string
}

// NewResultLog creates a log persisting to path. The file is created lazily
// on first append.
func NewResultLog(path string) *ResultLog {
	return &ResultLog{path: path}
}

// Append writes one result row, creating the file with its header first if
// needed.
func (l *ResultLog) Append(e models.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	exists, err := l.checkSchema()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open result log: %w", err)
	}
	defer f.Close()

	if !exists {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("write result log: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(logHeader); err != nil {
			return fmt.Errorf("write result log header: %w", err)
		}
	}
	row := []string{
		e.Timestamp.Format(logTimeLayout),
		e.Email,
		string(e.Outcome),
		e.PrizeName,
		e.CouponCode,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write result log row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush result log: %w", err)
	}
	return nil
}

// Entries returns every logged row in append order.
func (l *ResultLog) Entries() ([]models.LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readAll()
	if err != nil {
		return nil, err
	}
	if records == nil {
		return nil, nil
	}

	entries := make([]models.LogEntry, 0, len(records))
	for _, rec := range records {
		ts, err := time.ParseInLocation(logTimeLayout, rec[0], time.Local)
		if err != nil {
			return nil, &SchemaConflictError{Path: l.path, Detail: fmt.Sprintf("bad timestamp %q", rec[0])}
		}
		entries = append(entries, models.LogEntry{
			Timestamp:  ts,
			Email:      rec[1],
			Outcome:    models.Outcome(rec[2]),
			PrizeName:  rec[3],
			CouponCode: rec[4],
		})
	}
	return entries, nil
}

// Recover archives a conflicting or corrupted log file so the next append
// can recreate it cleanly. The old data is renamed aside, never deleted. It
// returns the archive path, or an empty string when there was nothing to
// archive.
func (l *ResultLog) Recover() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		return "", nil
	}
	archive := fmt.Sprintf("%s.bak-%s", l.path, time.Now().Format("20060102-150405"))
	if err := os.Rename(l.path, archive); err != nil {
		return "", fmt.Errorf("archive result log: %w", err)
	}
	return archive, nil
}

// Path returns the log file location.
func (l *ResultLog) Path() string {
	return l.path
}

// checkSchema verifies the header of an existing file. It reports whether a
// usable file exists; a present file with the wrong layout is a
// SchemaConflictError.
func (l *ResultLog) checkSchema() (bool, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read result log: %w", err)
	}
	if len(bytes.TrimSpace(bytes.TrimPrefix(raw, utf8BOM))) == 0 {
		return false, nil
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	header, err := r.Read()
	if err != nil {
		return false, &SchemaConflictError{Path: l.path, Detail: err.Error()}
	}
	if len(header) != len(logHeader) {
		return false, &SchemaConflictError{Path: l.path, Detail: fmt.Sprintf("expected %d columns, found %d", len(logHeader), len(header))}
	}
	for i, col := range logHeader {
		if header[i] != col {
			return false, &SchemaConflictError{Path: l.path, Detail: fmt.Sprintf("column %d is %q, expected %q", i, header[i], col)}
		}
	}
	return true, nil
}

// readAll returns the data rows of the file, or nil when the file does not
// exist yet.
func (l *ResultLog) readAll() ([][]string, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read result log: %w", err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, &SchemaConflictError{Path: l.path, Detail: err.Error()}
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) != len(logHeader) {
		return nil, &SchemaConflictError{Path: l.path, Detail: fmt.Sprintf("expected %d columns, found %d", len(logHeader), len(records[0]))}
	}
	for i, col := range logHeader {
		if records[0][i] != col {
			return nil, &SchemaConflictError{Path: l.path, Detail: fmt.Sprintf("column %d is %q, expected %q", i, records[0][i], col)}
		}
	}
	return records[1:], nil
}
