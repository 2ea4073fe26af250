package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/nexusmsg/campaign-engine/internal/transport/http/handler"
	"github.com/nexusmsg/campaign-engine/internal/transport/http/middleware"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	campaignHandler *handler.CampaignHandler,
	mediaHandler *handler.MediaHandler,
	jwtKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwtKey)

	campaigns := r.Group("/campaigns", authMW)
	campaigns.GET("", campaignHandler.List)
	campaigns.POST("", campaignHandler.Create)
	campaigns.GET("/stats", campaignHandler.Stats)
	campaigns.GET(":id", campaignHandler.GetByID)
	campaigns.PUT(":id", campaignHandler.Update)
	campaigns.DELETE(":id", campaignHandler.Delete)
	campaigns.POST(":id/start", campaignHandler.Start)
	campaigns.POST(":id/pause", campaignHandler.Pause)
	campaigns.POST(":id/resume", campaignHandler.Resume)
	campaigns.POST(":id/duplicate", campaignHandler.Duplicate)
	campaigns.GET(":id/outcomes", campaignHandler.ListOutcomes)

	mediaGroup := r.Group("/media", authMW)
	mediaGroup.POST("", mediaHandler.Upload)
	mediaGroup.GET("", mediaHandler.List)
	mediaGroup.DELETE(":id", mediaHandler.Delete)

	return r
}
