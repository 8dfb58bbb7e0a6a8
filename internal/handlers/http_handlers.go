package handlers

import (
	"encoding/csv"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"goldtrio/internal/services"
)

// HTTPHandler holds the dependencies for the HTTP handlers: the game engine,
// the result log for the back office, and the admin credential.
type HTTPHandler struct {
	game          *services.GameService
	results       *services.ResultLog
	adminPassword string
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(game *services.GameService, results *services.ResultLog, adminPassword string) *HTTPHandler {
	return &HTTPHandler{
		game:          game,
		results:       results,
		adminPassword: adminPassword,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", h.Login)
	router.GET("/sessions/:id", h.SessionState)
	router.POST("/sessions/:id/reveal", h.Reveal)
	router.DELETE("/sessions/:id", h.DiscardSession)
	router.GET("/coupons/:code/barcode.png", h.CouponBarcode)

	admin := router.Group("/admin")
	admin.Use(h.AdminMiddleware())
	admin.GET("/logs", h.ListLogs)
	admin.GET("/logs/export", h.ExportLogsCSV)
	admin.POST("/logs/reset", h.ResetLogs)
}

// AdminMiddleware gates the back office behind the configured password,
// taken from the X-Admin-Password header.
func (h *HTTPHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Password") != h.adminPassword {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin password"})
			return
		}
		c.Next()
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login starts a new round for the submitted email, charging one daily
// attempt.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	state, err := h.game.Login(req.Email)
	if err != nil {
		h.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// SessionState returns the current projection of a session. The front end
// polls this; expiry is detected server-side on each poll.
func (h *HTTPHandler) SessionState(c *gin.Context) {
	state, err := h.game.State(c.Param("id"))
	if err != nil {
		h.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type revealRequest struct {
	Index *int `json:"index"`
}

// Reveal flips one cell of the session's board.
func (h *HTTPHandler) Reveal(c *gin.Context) {
	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cell index is required"})
		return
	}

	state, err := h.game.Reveal(c.Param("id"), *req.Index)
	if err != nil {
		h.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DiscardSession drops a session, typically when the participant returns to
// the login screen for another round.
func (h *HTTPHandler) DiscardSession(c *gin.Context) {
	h.game.ClearSession(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// CouponBarcode renders a coupon code as a Code128 PNG.
func (h *HTTPHandler) CouponBarcode(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coupon code is required"})
		return
	}

	img, err := services.CouponBarcodePNG(code)
	if err != nil {
		logger.Errorf("barcode render failed for %q: %v", code, err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "coupon code cannot be rendered"})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// ListLogs returns every logged round as JSON.
func (h *HTTPHandler) ListLogs(c *gin.Context) {
	entries, err := h.results.Entries()
	if err != nil {
		h.writeLogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ExportLogsCSV downloads the result log as a CSV file.
func (h *HTTPHandler) ExportLogsCSV(c *gin.Context) {
	entries, err := h.results.Entries()
	if err != nil {
		h.writeLogError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=game_data.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"時間", "Email", "遊戲結果", "獎項", "優惠碼"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Email,
			string(e.Outcome),
			e.PrizeName,
			e.CouponCode,
		}
		if err := w.Write(row); err != nil {
			logger.Infof("Error writing CSV row: %v", err)
			c.String(http.StatusInternalServerError, "Error writing CSV")
			return
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

// ResetLogs archives a conflicting log file so a fresh one can be created.
// The old file is renamed aside, never deleted.
func (h *HTTPHandler) ResetLogs(c *gin.Context) {
	archived, err := h.results.Recover()
	if err != nil {
		logger.Errorf("result log recovery failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not archive result log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// writeGameError maps engine errors to HTTP responses.
func (h *HTTPHandler) writeGameError(c *gin.Context, err error) {
	var quotaErr *services.QuotaExceededError
	switch {
	case errors.Is(err, services.ErrEmailRequired), errors.Is(err, services.ErrEmailFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": quotaErr.Error(), "attemptsUsed": quotaErr.Count})
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrRoundFinished),
		errors.Is(err, services.ErrCooldownActive),
		errors.Is(err, services.ErrRevealLimit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrCellUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// writeLogError surfaces result-log problems, keeping schema conflicts
// distinguishable so the back office can offer recovery.
func (h *HTTPHandler) writeLogError(c *gin.Context, err error) {
	var schemaErr *services.SchemaConflictError
	if errors.As(err, &schemaErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       schemaErr.Error(),
			"recoverable": true,
		})
		return
	}
	logger.Errorf("result log read failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read result log"})
}
