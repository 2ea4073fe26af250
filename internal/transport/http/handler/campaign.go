package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/usecase"
)

type CampaignHandler struct {
	uc     *usecase.CampaignUsecase
	logger *slog.Logger
}

func NewCampaignHandler(uc *usecase.CampaignUsecase, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{uc: uc, logger: logger.With("component", "campaign_handler")}
}

type scheduleRequest struct {
	Type          domain.ScheduleType `json:"type"           binding:"required,oneof=once interval specific_times"`
	At            *time.Time          `json:"at"`
	IntervalHours int                 `json:"interval_hours" binding:"omitempty,min=1"`
	Times         []domain.DayTime    `json:"times"`
	StartAt       *time.Time          `json:"start_at"`
	EndAt         *time.Time          `json:"end_at"`
}

type campaignRequest struct {
	Title        string                  `json:"title"         binding:"required,max=256"`
	ConnectionID string                  `json:"connection_id" binding:"required"`
	GroupIDs     []string                `json:"group_ids"     binding:"required,min=1"`
	Variants     []domain.MessageVariant `json:"variants"      binding:"required,min=1"`
	Schedule     scheduleRequest         `json:"schedule"      binding:"required"`
	DelaySeconds int                     `json:"delay_seconds" binding:"omitempty,min=0,max=3600"`
}

func (req campaignRequest) toInput(userID string) usecase.CampaignInput {
	return usecase.CampaignInput{
		UserID:       userID,
		Title:        req.Title,
		ConnectionID: req.ConnectionID,
		GroupIDs:     req.GroupIDs,
		Variants:     req.Variants,
		Schedule: domain.ScheduleRule{
			Type:          req.Schedule.Type,
			At:            req.Schedule.At,
			IntervalHours: req.Schedule.IntervalHours,
			Times:         req.Schedule.Times,
			StartAt:       req.Schedule.StartAt,
			EndAt:         req.Schedule.EndAt,
		},
		DelaySeconds: req.DelaySeconds,
	}
}

type campaignResponse struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	ConnectionID string                  `json:"connection_id"`
	GroupIDs     []string                `json:"group_ids"`
	Variants     []domain.MessageVariant `json:"variants"`
	Schedule     domain.ScheduleRule     `json:"schedule"`
	DelaySeconds int                     `json:"delay_seconds"`

	Status           domain.Status `json:"status"`
	SentCount        int           `json:"sent_count"`
	TotalCount       int           `json:"total_count"`
	Cursor           int           `json:"cursor"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	LastRunAt        *time.Time    `json:"last_run_at,omitempty"`
	NextRunAt        *time.Time    `json:"next_run_at,omitempty"`
	PausedAt         *time.Time    `json:"paused_at,omitempty"`
	RemainingSeconds *int64        `json:"remaining_seconds,omitempty"`
	LastError        *string       `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:               c.ID,
		Title:            c.Title,
		ConnectionID:     c.ConnectionID,
		GroupIDs:         c.GroupIDs,
		Variants:         c.Variants,
		Schedule:         c.Schedule,
		DelaySeconds:     c.DelaySeconds,
		Status:           c.Status,
		SentCount:        c.SentCount,
		TotalCount:       c.TotalCount,
		Cursor:           c.Cursor,
		StartedAt:        c.StartedAt,
		LastRunAt:        c.LastRunAt,
		NextRunAt:        c.NextRunAt,
		PausedAt:         c.PausedAt,
		RemainingSeconds: c.RemainingSeconds,
		LastError:        c.LastError,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

type engineStateResponse struct {
	Status           domain.Status `json:"status"`
	NextRunAt        *time.Time    `json:"next_run_at,omitempty"`
	RemainingSeconds *int64        `json:"remaining_seconds,omitempty"`
}

func toEngineStateResponse(s usecase.EngineState) engineStateResponse {
	return engineStateResponse{
		Status:           s.Status,
		NextRunAt:        s.NextRunAt,
		RemainingSeconds: s.RemainingSeconds,
	}
}

func (h *CampaignHandler) Create(ctx *gin.Context) {
	var req campaignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c, err := h.uc.CreateCampaign(ctx.Request.Context(), req.toInput(ctx.GetString("userID")))
	if err != nil {
		h.writeError(ctx, "create campaign", "", err)
		return
	}

	ctx.JSON(http.StatusCreated, toCampaignResponse(c))
}

func (h *CampaignHandler) List(ctx *gin.Context) {
	campaigns, err := h.uc.ListCampaigns(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		h.logger.Error("list campaigns", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	items := make([]campaignResponse, len(campaigns))
	for i, c := range campaigns {
		items[i] = toCampaignResponse(c)
	}
	ctx.JSON(http.StatusOK, gin.H{"campaigns": items})
}

func (h *CampaignHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	c, err := h.uc.GetCampaign(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "get campaign", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toCampaignResponse(c))
}

func (h *CampaignHandler) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	var req campaignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c, err := h.uc.UpdateCampaign(ctx.Request.Context(), id, req.toInput(ctx.GetString("userID")))
	if err != nil {
		h.writeError(ctx, "update campaign", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toCampaignResponse(c))
}

func (h *CampaignHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.uc.DeleteCampaign(ctx.Request.Context(), id, ctx.GetString("userID")); err != nil {
		h.writeError(ctx, "delete campaign", id, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *CampaignHandler) Start(ctx *gin.Context) {
	id := ctx.Param("id")

	state, err := h.uc.StartNow(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "start campaign", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toEngineStateResponse(state))
}

func (h *CampaignHandler) Pause(ctx *gin.Context) {
	id := ctx.Param("id")

	state, err := h.uc.Pause(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "pause campaign", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toEngineStateResponse(state))
}

func (h *CampaignHandler) Resume(ctx *gin.Context) {
	id := ctx.Param("id")

	state, err := h.uc.Resume(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "resume campaign", id, err)
		return
	}

	ctx.JSON(http.StatusOK, toEngineStateResponse(state))
}

func (h *CampaignHandler) Duplicate(ctx *gin.Context) {
	id := ctx.Param("id")

	c, err := h.uc.DuplicateCampaign(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "duplicate campaign", id, err)
		return
	}

	ctx.JSON(http.StatusCreated, toCampaignResponse(c))
}

type outcomeResponse struct {
	ID      string               `json:"id"`
	GroupID string               `json:"group_id"`
	Result  domain.OutcomeResult `json:"result"`
	Detail  *string              `json:"detail,omitempty"`
	SentAt  time.Time            `json:"sent_at"`
}

func (h *CampaignHandler) ListOutcomes(ctx *gin.Context) {
	id := ctx.Param("id")

	records, err := h.uc.ListOutcomes(ctx.Request.Context(), id, ctx.GetString("userID"))
	if err != nil {
		h.writeError(ctx, "list outcomes", id, err)
		return
	}

	items := make([]outcomeResponse, len(records))
	for i, rec := range records {
		items[i] = outcomeResponse{
			ID:      rec.ID,
			GroupID: rec.GroupID,
			Result:  rec.Result,
			Detail:  rec.Detail,
			SentAt:  rec.SentAt,
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"outcomes": items})
}

func (h *CampaignHandler) Stats(ctx *gin.Context) {
	stats, err := h.uc.Stats(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		h.logger.Error("campaign stats", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"total":     stats.Total,
		"pending":   stats.Pending,
		"completed": stats.Completed,
		"sent":      stats.Sent,
	})
}

// writeError maps domain errors onto HTTP statuses; anything unexpected is
// logged and hidden behind a 500.
func (h *CampaignHandler) writeError(ctx *gin.Context, op, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errCampaignNotFound})
	case errors.Is(err, domain.ErrCampaignRunning):
		ctx.JSON(http.StatusConflict, gin.H{"error": errCampaignRunning})
	case errors.Is(err, domain.ErrCampaignNotPaused):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrConnectionNotReady):
		ctx.JSON(http.StatusConflict, gin.H{"error": errConnectionNotReady})
	case errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrScheduleInPast),
		errors.Is(err, domain.ErrNoRecipients),
		errors.Is(err, domain.ErrNoContent):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, "campaign_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
