package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pricealert/backend/internal/domain"
	"github.com/pricealert/backend/internal/usecase"
)

// TrackingService is the control surface the handlers drive
type TrackingService interface {
	SearchCandidates(ctx context.Context, req usecase.SearchRequest) ([]domain.Candidate, error)
	StartTracking(ctx context.Context, req usecase.StartRequest) (*domain.TrackingState, error)
	StopTracking(ctx context.Context) error
	ResumeTracking(ctx context.Context) (*domain.TrackingState, error)
	ConfirmStatus(ctx context.Context) (bool, error)
	Status(ctx context.Context) (*usecase.TrackingStatus, error)
	DeleteTracking(ctx context.Context) error
	SendTestEmail(ctx context.Context, recipient string) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	tracking TrackingService
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. A nil service makes every
// tracking endpoint answer 503.
func NewHandler(tracking TrackingService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tracking: tracking, logger: logger}
}

type candidatesQuery struct {
	Keyword string `form:"keyword" binding:"required"`
	Site    string `form:"site" binding:"omitempty,oneof=all danawa gmarket"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type startTrackingRequest struct {
	Keyword               string   `json:"keyword" binding:"required"`
	CandidateIDs          []string `json:"candidateIds" binding:"required,min=1,dive,uuid"`
	CrawlIntervalMinutes  int      `json:"crawlIntervalMinutes" binding:"omitempty,min=1"`
	NotifyIntervalMinutes int      `json:"notifyIntervalMinutes" binding:"omitempty,min=1"`
	Email                 string   `json:"email" binding:"required,email"`
}

type testEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricealert-backend",
		"version": "1.0.0",
	})
}

// Options lists the selectable intervals and sites
func (h *Handler) Options(c *gin.Context) {
	sites := make([]gin.H, 0, len(domain.AllSites))
	for _, s := range domain.AllSites {
		sites = append(sites, gin.H{"id": s, "name": s.DisplayName()})
	}
	c.JSON(http.StatusOK, gin.H{
		"sites":                 sites,
		"crawlIntervals":        domain.CrawlIntervals,
		"notifyIntervals":       domain.NotifyIntervals,
		"defaultCrawlInterval":  domain.DefaultCrawlInterval,
		"defaultNotifyInterval": domain.DefaultNotifyInterval,
		"defaultCandidateCount": domain.DefaultCandidateCount,
	})
}

// SearchCandidates handles GET /api/v1/candidates
func (h *Handler) SearchCandidates(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var q candidatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := usecase.SearchRequest{Keyword: q.Keyword, Limit: q.Limit}
	if q.Site != "" && q.Site != "all" {
		req.Sites = []domain.Site{domain.Site(q.Site)}
	}

	candidates, err := h.tracking.SearchCandidates(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

// StartTracking handles POST /api/v1/tracking
func (h *Handler) StartTracking(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var body startTrackingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state, err := h.tracking.StartTracking(c.Request.Context(), usecase.StartRequest{
		Keyword:        body.Keyword,
		CandidateIDs:   body.CandidateIDs,
		CrawlInterval:  body.CrawlIntervalMinutes,
		NotifyInterval: body.NotifyIntervalMinutes,
		Email:          body.Email,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetStatus handles GET /api/v1/tracking
func (h *Handler) GetStatus(c *gin.Context) {
	if !h.available(c) {
		return
	}
	status, err := h.tracking.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// StopTracking handles POST /api/v1/tracking/stop
func (h *Handler) StopTracking(c *gin.Context) {
	if !h.available(c) {
		return
	}
	err := h.tracking.StopTracking(c.Request.Context())
	if errors.Is(err, domain.ErrStopTimeout) {
		c.JSON(http.StatusAccepted, gin.H{"stopped": false, "message": "stop requested, current tick still finishing"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// ResumeTracking handles POST /api/v1/tracking/resume
func (h *Handler) ResumeTracking(c *gin.Context) {
	if !h.available(c) {
		return
	}
	state, err := h.tracking.ResumeTracking(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// ConfirmStatus handles POST /api/v1/tracking/confirm
func (h *Handler) ConfirmStatus(c *gin.Context) {
	if !h.available(c) {
		return
	}
	changed, err := h.tracking.ConfirmStatus(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"confirmed": changed})
}

// DeleteTracking handles DELETE /api/v1/tracking
func (h *Handler) DeleteTracking(c *gin.Context) {
	if !h.available(c) {
		return
	}
	if err := h.tracking.DeleteTracking(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendTestEmail handles POST /api/v1/email/test
func (h *Handler) SendTestEmail(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var body testEmailRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tracking.SendTestEmail(c.Request.Context(), body.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (h *Handler) available(c *gin.Context) bool {
	if h.tracking == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tracking service not configured"})
		return false
	}
	return true
}

// fail maps domain errors to status codes
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("http: request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCandidateNotFound), errors.Is(err, domain.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyTracking), errors.Is(err, domain.ErrNotTracking):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSiteUnavailable), errors.Is(err, domain.ErrFetchFailed),
		errors.Is(err, domain.ErrEmailFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
