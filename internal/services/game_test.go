package services

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldtrio/internal/models"
)

func TestMain(m *testing.M) {
	l := logger.Init("services-test", false, false, io.Discard)
	code := m.Run()
	l.Close()
	os.Exit(code)
}

// newTestGame wires a game service against a temp directory with a
// controllable clock. Advance the returned time pointer to move the world
// forward.
func newTestGame(t *testing.T) (*GameService, *time.Time) {
	t.Helper()
	dir := t.TempDir()

	quota := NewQuotaStore(filepath.Join(dir, "quota.json"), 3, "vip@woowa.com")
	boards := NewBoardGenerator(9, 3, "win", []string{"lose1", "lose2", "lose3"}, "")
	prizes := NewPrizeService([]models.PrizeTier{{Prefix: "A", Name: "drink discount", Weight: 1, ValidityDays: 3}})
	results := NewResultLog(filepath.Join(dir, "logs.csv"))

	game := NewGameService(quota, boards, prizes, results, 20*time.Second, time.Hour)
	now := new(time.Time)
	*now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.Local)
	game.now = func() time.Time { return *now }
	return game, now
}

// setBoard swaps in a fixed layout so resolution tests are deterministic.
func setBoard(g *GameService, id string, faces []models.CardFace) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess := g.sessions[id]
	board := make(models.Board, len(faces))
	for i, f := range faces {
		board[i] = models.Cell{Face: f}
	}
	sess.Board = board
}

// trioBoard is a fixed layout: winning cells at 0, 2 and 5.
var trioBoard = []models.CardFace{
	"win", "lose1", "win", "lose2", "lose3", "win", "lose1", "lose2", "lose3",
}

func TestGameService_Login(t *testing.T) {
	t.Run("rejects a blank email before format validation", func(t *testing.T) {
		game, _ := newTestGame(t)
		_, err := game.Login("")
		assert.ErrorIs(t, err, ErrEmailRequired)
	})

	t.Run("rejects a malformed email", func(t *testing.T) {
		game, _ := newTestGame(t)
		_, err := game.Login("not-an-email")
		assert.ErrorIs(t, err, ErrEmailFormat)
	})

	t.Run("starts a playing session with a hidden board", func(t *testing.T) {
		game, _ := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)

		assert.Equal(t, models.PhasePlaying, state.Phase)
		assert.Equal(t, 1, state.Attempt)
		assert.False(t, state.Exempt)
		assert.Equal(t, 20, state.RemainingSeconds)
		require.Len(t, state.Cells, 9)
		for _, cell := range state.Cells {
			assert.Empty(t, cell.Face, "face-down cells must not leak their face")
			assert.False(t, cell.Solved)
			assert.False(t, cell.Revealed)
		}
	})

	t.Run("enforces the daily quota across logins", func(t *testing.T) {
		game, _ := newTestGame(t)
		for i := 1; i <= 3; i++ {
			state, err := game.Login("user@example.com")
			require.NoError(t, err)
			assert.Equal(t, i, state.Attempt)
		}

		_, err := game.Login("user@example.com")
		var quotaErr *QuotaExceededError
		require.ErrorAs(t, err, &quotaErr)
		assert.Equal(t, 3, quotaErr.Count)
	})

	t.Run("exempt identity logs in without limit", func(t *testing.T) {
		game, _ := newTestGame(t)
		for i := 0; i < 5; i++ {
			state, err := game.Login("vip@woowa.com")
			require.NoError(t, err)
			assert.True(t, state.Exempt)
		}
	})
}

func TestGameService_Reveal(t *testing.T) {
	t.Run("three winning cells end the round as a win", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		for _, idx := range []int{0, 2} {
			*now = now.Add(time.Second)
			state, err = game.Reveal(state.ID, idx)
			require.NoError(t, err)
			assert.Equal(t, models.PhasePlaying, state.Phase)
			assert.True(t, state.Cells[idx].Revealed)
			assert.Equal(t, "win", state.Cells[idx].Face)
		}

		*now = now.Add(time.Second)
		state, err = game.Reveal(state.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseWin, state.Phase)
		for _, idx := range []int{0, 2, 5} {
			assert.True(t, state.Cells[idx].Solved)
			assert.False(t, state.Cells[idx].Revealed)
		}
		require.NotNil(t, state.Prize)
		assert.Equal(t, "drink discount", state.Prize.Name)
		assert.Regexp(t, `^A-\d{5}$`, state.Prize.Code)
	})

	t.Run("a mixed triple clears the attempt and arms the cooldown", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		for _, idx := range []int{0, 1} {
			_, err = game.Reveal(state.ID, idx)
			require.NoError(t, err)
		}
		state, err = game.Reveal(state.ID, 2)
		require.NoError(t, err)

		assert.Equal(t, models.PhasePlaying, state.Phase)
		assert.Greater(t, state.CooldownMillis, int64(0))
		for _, cell := range state.Cells {
			assert.False(t, cell.Solved)
			assert.False(t, cell.Revealed)
		}

		// Reveals are blocked until the cooldown has passed.
		_, err = game.Reveal(state.ID, 0)
		assert.ErrorIs(t, err, ErrCooldownActive)

		*now = now.Add(1600 * time.Millisecond)
		_, err = game.Reveal(state.ID, 0)
		assert.NoError(t, err)
	})

	t.Run("three identical decoys are not a win", func(t *testing.T) {
		game, _ := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, []models.CardFace{
			"win", "lose1", "win", "lose1", "lose1", "win", "lose2", "lose3", "lose2",
		})

		for _, idx := range []int{1, 3, 4} {
			state, err = game.Reveal(state.ID, idx)
			require.NoError(t, err)
		}
		assert.Equal(t, models.PhasePlaying, state.Phase)
		for _, cell := range state.Cells {
			assert.False(t, cell.Solved)
		}
	})

	t.Run("rejects unavailable cells", func(t *testing.T) {
		game, _ := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		_, err = game.Reveal(state.ID, -1)
		assert.ErrorIs(t, err, ErrCellUnavailable)
		_, err = game.Reveal(state.ID, 9)
		assert.ErrorIs(t, err, ErrCellUnavailable)

		_, err = game.Reveal(state.ID, 4)
		require.NoError(t, err)
		_, err = game.Reveal(state.ID, 4)
		assert.ErrorIs(t, err, ErrCellUnavailable)
	})

	t.Run("an expired clock loses the round before the reveal is processed", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		*now = now.Add(21 * time.Second)
		state, err = game.Reveal(state.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseLose, state.Phase)
		assert.Equal(t, 0, state.RemainingSeconds)
		assert.False(t, state.Cells[0].Revealed, "the reveal must not be applied")
	})

	t.Run("reveals on a finished round are rejected", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		*now = now.Add(25 * time.Second)
		_, err = game.State(state.ID)
		require.NoError(t, err)

		_, err = game.Reveal(state.ID, 0)
		assert.ErrorIs(t, err, ErrRoundFinished)
	})

	t.Run("unknown session", func(t *testing.T) {
		game, _ := newTestGame(t)
		_, err := game.Reveal("nope", 0)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestGameService_Timeout(t *testing.T) {
	t.Run("polling past the deadline transitions to lose", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)

		*now = now.Add(19 * time.Second)
		state, err = game.State(state.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhasePlaying, state.Phase)
		assert.Equal(t, 1, state.RemainingSeconds)

		*now = now.Add(2 * time.Second)
		state, err = game.State(state.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseLose, state.Phase)
	})

	t.Run("partial progress never survives expiry", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)

		// Two winning cells are face-up when the clock runs out.
		_, err = game.Reveal(state.ID, 0)
		require.NoError(t, err)
		_, err = game.Reveal(state.ID, 2)
		require.NoError(t, err)

		*now = now.Add(30 * time.Second)
		state, err = game.State(state.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseLose, state.Phase)
		for _, cell := range state.Cells {
			assert.False(t, cell.Revealed)
			assert.False(t, cell.Solved)
		}
	})
}

func TestGameService_ResultLogging(t *testing.T) {
	winRound := func(t *testing.T, game *GameService, now *time.Time) *SessionState {
		t.Helper()
		state, err := game.Login("user@example.com")
		require.NoError(t, err)
		setBoard(game, state.ID, trioBoard)
		for _, idx := range []int{0, 2, 5} {
			state, err = game.Reveal(state.ID, idx)
			require.NoError(t, err)
		}
		require.Equal(t, models.PhaseWin, state.Phase)
		return state
	}

	t.Run("a win is logged exactly once with its prize and coupon", func(t *testing.T) {
		game, now := newTestGame(t)
		state := winRound(t, game, now)

		// Re-polling the terminal phase must not append again.
		for i := 0; i < 3; i++ {
			_, err := game.State(state.ID)
			require.NoError(t, err)
		}

		entries, err := game.results.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.OutcomeWin, entries[0].Outcome)
		assert.Equal(t, "user@example.com", entries[0].Email)
		assert.Equal(t, state.Prize.Name, entries[0].PrizeName)
		assert.Equal(t, state.Prize.Code, entries[0].CouponCode)
	})

	t.Run("a timeout is logged exactly once as a loss", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)

		*now = now.Add(time.Minute)
		for i := 0; i < 3; i++ {
			_, err = game.State(state.ID)
			require.NoError(t, err)
		}

		entries, err := game.results.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.OutcomeLose, entries[0].Outcome)
		assert.Equal(t, "N/A", entries[0].PrizeName)
		assert.Equal(t, "N/A", entries[0].CouponCode)
	})

	t.Run("a failed log write never hides the outcome", func(t *testing.T) {
		game, now := newTestGame(t)
		// Point the log somewhere unwritable.
		game.results = NewResultLog(filepath.Join(t.TempDir(), "missing", "sub", "logs.csv"))

		state := winRound(t, game, now)
		assert.Equal(t, models.PhaseWin, state.Phase)
		require.NotNil(t, state.Prize)

		// The phase survives re-polling even though logging keeps failing.
		state2, err := game.State(state.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseWin, state2.Phase)
		assert.Equal(t, state.Prize.Code, state2.Prize.Code, "the prize is drawn once and cached")
	})
}

func TestGameService_Sessions(t *testing.T) {
	t.Run("cleared sessions are gone", func(t *testing.T) {
		game, _ := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)

		game.ClearSession(state.ID)
		_, err = game.State(state.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("the janitor evicts idle sessions", func(t *testing.T) {
		game, now := newTestGame(t)
		state, err := game.Login("user@example.com")
		require.NoError(t, err)

		*now = now.Add(2 * time.Hour)
		game.CleanUpIdleSessions()

		_, err = game.State(state.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}
