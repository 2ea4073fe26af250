package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexusmsg/campaign-engine/internal/domain"
	"github.com/nexusmsg/campaign-engine/internal/media"
)

// Uploads beyond this are rejected before reading the body into memory.
const maxMediaBytes = 16 << 20

type MediaHandler struct {
	store  *media.Store
	logger *slog.Logger
}

func NewMediaHandler(store *media.Store, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger.With("component", "media_handler")}
}

type mediaResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func toMediaResponse(m *domain.Media) mediaResponse {
	return mediaResponse{ID: m.ID, OriginalName: m.OriginalName, CreatedAt: m.CreatedAt}
}

func (h *MediaHandler) Upload(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if fileHeader.Size > maxMediaBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open upload", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read upload", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	m, err := h.store.Save(ctx.Request.Context(), ctx.GetString("userID"), fileHeader.Filename, data)
	if err != nil {
		h.logger.Error("save media", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, toMediaResponse(m))
}

func (h *MediaHandler) List(ctx *gin.Context) {
	items, err := h.store.List(ctx.Request.Context(), ctx.GetString("userID"))
	if err != nil {
		h.logger.Error("list media", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	out := make([]mediaResponse, len(items))
	for i, m := range items {
		out[i] = toMediaResponse(m)
	}
	ctx.JSON(http.StatusOK, gin.H{"media": out})
}

func (h *MediaHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.store.Delete(ctx.Request.Context(), id, ctx.GetString("userID")); err != nil {
		if errors.Is(err, domain.ErrMediaNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errMediaNotFound})
			return
		}
		h.logger.Error("delete media", "media_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}
