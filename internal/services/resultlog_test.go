package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldtrio/internal/models"
)

func testEntry(outcome models.Outcome) models.LogEntry {
	e := models.LogEntry{
		Timestamp:  time.Date(2026, 8, 31, 14, 5, 6, 0, time.Local),
		Email:      "user@example.com",
		Outcome:    outcome,
		PrizeName:  "N/A",
		CouponCode: "N/A",
	}
	if outcome == models.OutcomeWin {
		e.PrizeName = "drink discount"
		e.CouponCode = "A-12345"
	}
	return e
}

func TestResultLog(t *testing.T) {
	t.Run("first append creates the file with a header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs.csv")
		l := NewResultLog(path)

		require.NoError(t, l.Append(testEntry(models.OutcomeWin)))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		text := string(raw)
		assert.True(t, strings.HasPrefix(text, "\xef\xbb\xbf"), "file should start with a UTF-8 BOM")
		assert.Contains(t, text, "時間,Email,遊戲結果,獎項,優惠碼")
		assert.Contains(t, text, "2026-08-31 14:05:06,user@example.com,WIN,drink discount,A-12345")
	})

	t.Run("subsequent appends keep prior rows and do not repeat the header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs.csv")
		l := NewResultLog(path)

		require.NoError(t, l.Append(testEntry(models.OutcomeWin)))
		require.NoError(t, l.Append(testEntry(models.OutcomeLose)))

		entries, err := l.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.OutcomeWin, entries[0].Outcome)
		assert.Equal(t, models.OutcomeLose, entries[1].Outcome)
		assert.Equal(t, "N/A", entries[1].PrizeName)
		assert.Equal(t, "N/A", entries[1].CouponCode)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(raw), "時間"), "header should appear once")
	})

	t.Run("an incompatible existing file is a schema conflict", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs.csv")
		require.NoError(t, os.WriteFile(path, []byte("when,who,what\n1,2,3\n"), 0o644))
		l := NewResultLog(path)

		err := l.Append(testEntry(models.OutcomeLose))
		var schemaErr *SchemaConflictError
		require.ErrorAs(t, err, &schemaErr)

		_, err = l.Entries()
		require.ErrorAs(t, err, &schemaErr)

		// The conflicting file is left untouched.
		raw, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Contains(t, string(raw), "when,who,what")
	})

	t.Run("recover archives the old file and a fresh one is created", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs.csv")
		require.NoError(t, os.WriteFile(path, []byte("bad header\n"), 0o644))
		l := NewResultLog(path)

		archived, err := l.Recover()
		require.NoError(t, err)
		require.NotEmpty(t, archived)

		_, err = os.Stat(archived)
		assert.NoError(t, err, "archive should exist")
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), "original should be moved aside")

		require.NoError(t, l.Append(testEntry(models.OutcomeWin)))
		entries, err := l.Entries()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("recover with no file is a no-op", func(t *testing.T) {
		l := NewResultLog(filepath.Join(t.TempDir(), "logs.csv"))
		archived, err := l.Recover()
		require.NoError(t, err)
		assert.Empty(t, archived)
	})

	t.Run("entries on a missing file is empty, not an error", func(t *testing.T) {
		l := NewResultLog(filepath.Join(t.TempDir(), "logs.csv"))
		entries, err := l.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
