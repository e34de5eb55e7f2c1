package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/session"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/usecase"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// DigestRunner executes one pipeline run.
type DigestRunner interface {
	Run(ctx context.Context, req domain.DigestRequest) usecase.Result
}

// FreshnessGate brings the headline index up to date before a run.
type FreshnessGate interface {
	Ensure(ctx context.Context) error
}

type handlers struct {
	sessions   session.Store
	runner     DigestRunner
	gate       FreshnessGate
	history    ports.RunRecorder
	runTimeout time.Duration
	logger     *slog.Logger
}

type createSessionRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handlers) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a valid email address is required")
	}

	sess, err := h.sessions.Create(c.Request().Context(), addr.Address)
	if err != nil {
		h.logger.Error("create session", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		Token:     sess.Token,
		Email:     sess.Email,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *handlers) deleteSession(c echo.Context) error {
	if err := h.sessions.Revoke(c.Request().Context(), currentSession(c).Token); err != nil {
		h.logger.Error("revoke session", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
	}
	return c.NoContent(http.StatusNoContent)
}

type digestRequest struct {
	Preferences string `json:"preferences"`
	Recipient   string `json:"recipient"`
}

type digestResponse struct {
	RunID     string                 `json:"run_id"`
	State     domain.RunState        `json:"state"`
	States    []domain.RunState      `json:"states"`
	Message   string                 `json:"message"`
	Headlines int                    `json:"headlines"`
	Failed    int                    `json:"failed_articles"`
	Delivery  *domain.DeliveryResult `json:"delivery,omitempty"`
}

func (h *handlers) submitDigest(c echo.Context) error {
	var req digestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(req.Preferences) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "preferences are required")
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = currentSession(c).Email
	}

	ctx := c.Request().Context()
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	if h.gate != nil {
		if err := h.gate.Ensure(ctx); err != nil {
			h.logger.Warn("index refresh before run failed, using existing index", "error", err)
		}
	}

	res := h.runner.Run(ctx, domain.DigestRequest{Preferences: req.Preferences, Recipient: recipient})
	body := digestResponse{
		RunID:     res.RunID,
		State:     res.State(),
		States:    res.States,
		Message:   res.Message(),
		Headlines: res.Headlines.Count(),
		Failed:    domain.CountFailed(res.Articles),
		Delivery:  res.Delivery,
	}

	if res.Err != nil {
		return c.JSON(mapError(res.Err).Code, body)
	}
	return c.JSON(http.StatusOK, body)
}

type runView struct {
	ID             string                `json:"id"`
	State          domain.RunState       `json:"state"`
	FailedStage    domain.Stage          `json:"failed_stage,omitempty"`
	Error          string                `json:"error,omitempty"`
	Headlines      int                   `json:"headlines"`
	FailedFetches  int                   `json:"failed_fetches"`
	DeliveryStatus domain.DeliveryStatus `json:"delivery_status,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

func (h *handlers) listRuns(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusOK, []runView{})
	}

	limit := defaultRunsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.history.ListByRecipient(c.Request().Context(), currentSession(c).Email, limit)
	if err != nil {
		h.logger.Error("list runs", "error", err)
		return mapError(err)
	}

	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		out = append(out, runView{
			ID:             r.ID,
			State:          r.State,
			FailedStage:    r.FailedStage,
			Error:          r.Error,
			Headlines:      r.HeadlineCount,
			FailedFetches:  r.FailedFetches,
			DeliveryStatus: r.DeliveryStatus,
			StartedAt:      r.StartedAt,
			FinishedAt:     r.FinishedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
