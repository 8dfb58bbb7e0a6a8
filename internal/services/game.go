package services

import (
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"goldtrio/internal/models"
)

const (
	// revealLimit is how many cells one attempt may flip before resolution.
	revealLimit = 3
	// loseCooldown is how long reveals stay blocked after a failed triple,
	// so the miss is visible before the cards hide again.
	loseCooldown = 1500 * time.Millisecond
)

// GameSession holds the full state of one participant's round. It lives in
// memory only; a restart or eviction discards it, costing the participant
// nothing beyond the single quota increment taken at round start.
type GameSession struct {
	ID      string
	Email   string
	Exempt  bool
	Attempt int
	Board   models.Board
	Clock   RoundClock
	Phase   models.Phase

	revealed      []int
	cooldownUntil time.Time
	prize         *models.PrizeResult
	resultLogged  bool

	LastActivity time.Time
}

// GameService owns every live session and drives the round state machine:
// login through play to a terminal win or loss.
type GameService struct {
	mu       sync.Mutex
	sessions map[string]*GameSession

	quota   *QuotaStore
	boards  *BoardGenerator
	prizes  *PrizeService
	results *ResultLog

	roundDuration time.Duration
	idleTTL       time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewGameService wires the round engine together.
func NewGameService(quota *QuotaStore, boards *BoardGenerator, prizes *PrizeService, results *ResultLog, roundDuration, idleTTL time.Duration) *GameService {
	return &GameService{
		sessions:      make(map[string]*GameSession),
		quota:         quota,
		boards:        boards,
		prizes:        prizes,
		results:       results,
		roundDuration: roundDuration,
		idleTTL:       idleTTL,
		now:           time.Now,
	}
}

// CellView is the client-facing projection of one cell. The face is only
// included once the cell is solved or currently face-up; everything else
// stays server-side so the board cannot be read out of the response.
type CellView struct {
	Face     string `json:"face,omitempty"`
	Solved   bool   `json:"solved"`
	Revealed bool   `json:"revealed"`
}

// SessionState is the client-facing projection of a session. Rendering is a
// pure function of this value.
type SessionState struct {
	ID               string              `json:"id"`
	Email            string              `json:"email"`
	Phase            models.Phase        `json:"phase"`
	Attempt          int                 `json:"attempt"`
	Exempt           bool                `json:"vip"`
	RemainingSeconds int                 `json:"remainingSeconds"`
	CooldownMillis   int64               `json:"cooldownMillis"`
	Cells            []CellView          `json:"cells"`
	Prize            *models.PrizeResult `json:"prize,omitempty"`
}

// Login validates the identity, charges the daily quota and starts a fresh
// round. Each login consumes exactly one attempt, regardless of how the
// round ends.
func (s *GameService) Login(email string) (*SessionState, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !ValidEmail(email) {
		return nil, ErrEmailFormat
	}

	now := s.now()
	dec, err := s.quota.Authorize(email, now)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		return nil, &QuotaExceededError{Email: email, Count: dec.Attempt}
	}

	sess := &GameSession{
		ID:           uuid.NewString(),
		Email:        email,
		Exempt:       dec.Exempt,
		Attempt:      dec.Attempt,
		Board:        s.boards.Generate(),
		Clock:        RoundClock{Start: now, Duration: s.roundDuration},
		Phase:        models.PhasePlaying,
		LastActivity: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Infof("round started for %s (attempt %d, vip=%t)", email, dec.Attempt, dec.Exempt)
	return s.view(sess, now), nil
}

// State returns the current projection of a session. Polling it is what
// detects expiry: the clock is re-read against the wall clock on every call.
func (s *GameService) State(id string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	sess.LastActivity = now
	s.syncPhase(sess, now)
	return s.view(sess, now), nil
}

// Reveal flips one cell. The third reveal of an attempt resolves it
// immediately: three winning faces end the round as a win, anything else
// clears the attempt and arms the cooldown. An expired clock ends the round
// as a loss before the reveal is processed, whatever the board looks like.
func (s *GameService) Reveal(id string, index int) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	sess.LastActivity = now

	if sess.Phase.Terminal() {
		s.finalize(sess, now)
		return nil, ErrRoundFinished
	}

	s.syncPhase(sess, now)
	if sess.Phase.Terminal() {
		// Timed out on this very poll; the reveal is not processed.
		return s.view(sess, now), nil
	}

	if now.Before(sess.cooldownUntil) {
		return nil, ErrCooldownActive
	}
	if index < 0 || index >= len(sess.Board) {
		return nil, ErrCellUnavailable
	}
	cell := &sess.Board[index]
	if cell.Solved || cell.Revealed {
		return nil, ErrCellUnavailable
	}
	if len(sess.revealed) >= revealLimit {
		return nil, ErrRevealLimit
	}

	cell.Revealed = true
	sess.revealed = append(sess.revealed, index)

	if len(sess.revealed) == revealLimit {
		s.resolve(sess, now)
	}
	return s.view(sess, now), nil
}

// ClearSession discards a session, e.g. when the participant heads back to
// the login screen for another round.
func (s *GameService) ClearSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// CleanUpIdleSessions evicts sessions with no activity for the idle TTL.
// An abandoned round has already paid its one quota increment; dropping the
// session costs nothing else.
func (s *GameService) CleanUpIdleSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.idleTTL {
			logger.Infof("evicting idle session %s (%s)", id, sess.Email)
			delete(s.sessions, id)
		}
	}
}

// syncPhase applies clock expiry and drives any pending finalization.
// Solved cells from earlier attempts never save an expired round: only a
// completed triple within the time box wins.
func (s *GameService) syncPhase(sess *GameSession, now time.Time) {
	if sess.Phase == models.PhasePlaying && sess.Clock.Expired(now) {
		for _, i := range sess.revealed {
			sess.Board[i].Revealed = false
		}
		sess.revealed = nil
		sess.Phase = models.PhaseLose
	}
	s.finalize(sess, now)
}

// resolve settles a complete three-card attempt. Only three winning faces
// count; three identical decoys are still a miss.
func (s *GameService) resolve(sess *GameSession, now time.Time) {
	winFace := s.boards.WinFace()
	win := true
	for _, i := range sess.revealed {
		if sess.Board[i].Face != winFace {
			win = false
			break
		}
	}

	if win {
		for _, i := range sess.revealed {
			sess.Board[i].Solved = true
			sess.Board[i].Revealed = false
		}
		sess.revealed = nil
		sess.Phase = models.PhaseWin
		s.finalize(sess, now)
		return
	}

	for _, i := range sess.revealed {
		sess.Board[i].Revealed = false
	}
	sess.revealed = nil
	sess.cooldownUntil = now.Add(loseCooldown)
}

// finalize draws the prize for a win and appends the result row. The prize
// is cached on the session so it is drawn at most once, and the logged flag
// flips only on a successful append, so a failed write is retried on the
// next poll instead of being dropped. The terminal phase itself is never
// rolled back by a logging failure.
func (s *GameService) finalize(sess *GameSession, now time.Time) {
	if !sess.Phase.Terminal() || sess.resultLogged {
		return
	}

	entry := models.LogEntry{
		Timestamp:  now,
		Email:      sess.Email,
		Outcome:    models.OutcomeLose,
		PrizeName:  "N/A",
		CouponCode: "N/A",
	}
	if sess.Phase == models.PhaseWin {
		if sess.prize == nil {
			p := s.prizes.Draw(now)
			sess.prize = &p
		}
		entry.Outcome = models.OutcomeWin
		entry.PrizeName = sess.prize.Name
		entry.CouponCode = sess.prize.Code
	}

	if err := s.results.Append(entry); err != nil {
		logger.Errorf("result log append failed for session %s: %v", sess.ID, err)
		return
	}
	sess.resultLogged = true
}

// view projects a session for the client. Unsolved, face-down cells carry no
// face, keeping the board server-authoritative.
func (s *GameService) view(sess *GameSession, now time.Time) *SessionState {
	cells := make([]CellView, len(sess.Board))
	for i, c := range sess.Board {
		cells[i] = CellView{Solved: c.Solved, Revealed: c.Revealed}
		if c.Solved || c.Revealed {
			cells[i].Face = string(c.Face)
		}
	}

	var cooldown int64
	if d := sess.cooldownUntil.Sub(now); d > 0 && sess.Phase == models.PhasePlaying {
		cooldown = d.Milliseconds()
	}

	return &SessionState{
		ID:               sess.ID,
		Email:            sess.Email,
		Phase:            sess.Phase,
		Attempt:          sess.Attempt,
		Exempt:           sess.Exempt,
		RemainingSeconds: int(sess.Clock.Remaining(now) / time.Second),
		CooldownMillis:   cooldown,
		Cells:            cells,
		Prize:            sess.prize,
	}
}
