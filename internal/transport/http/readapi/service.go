// Package readapi exposes the document read cycle over HTTP.
package readapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/abdrou13-pixel/ReadCard/internal/domain/reader"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/config"
	"github.com/abdrou13-pixel/ReadCard/internal/platform/logging"
	httptransport "github.com/abdrou13-pixel/ReadCard/internal/transport/http"
)

// Service wires the read coordinator to the HTTP surface.
type Service struct {
	cfg         *config.Config
	coordinator *reader.Coordinator
	gateway     *reader.Gateway
	logger      *logging.Logger
	startedAt   time.Time
}

// NewService builds the read API service.
func NewService(cfg *config.Config, coordinator *reader.Coordinator, gateway *reader.Gateway, logger *logging.Logger) *Service {
	return &Service{
		cfg:         cfg,
		coordinator: coordinator,
		gateway:     gateway,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// RegisterRoutes mounts the endpoints. The read endpoint lives both at the
// root and under /api for clients that expect either layout.
func (s *Service) RegisterRoutes(router *httptransport.Router) {
	auth := httptransport.APIKeyMiddleware(s.cfg.Server.APIKey, s.logger)
	router.Engine.POST("/read", auth, s.handleRead)
	router.Engine.GET("/health", s.handleHealth)

	router.Secured.POST("/read", s.handleRead)
	router.API.GET("/health", s.handleHealth)
}

// ReadRequest is the optional request body of the read endpoint.
type ReadRequest struct {
	// TimeoutSeconds overrides the configured per-read deadline.
	TimeoutSeconds int `json:"timeout_seconds"`
}

func (s *Service) handleRead(c *gin.Context) {
	var req ReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ReadResponse{
				OK:      false,
				Code:    "bad_request",
				Message: "invalid request body",
			})
			return
		}
	}

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	result, err := s.coordinator.Read(c.Request.Context(), timeout)
	if err != nil {
		status, body := MapError(err)
		s.logger.WarnTag("[READ]", "read request failed: %s (%d)", body.Message, status)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, MapResult(result))
}

func (s *Service) handleHealth(c *gin.Context) {
	deviceOpen := s.gateway.Device() != nil

	data := gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"device": gin.H{
			"name": s.gateway.DeviceName(),
			"open": deviceOpen,
		},
	}

	if hostInfo, err := host.Info(); err == nil {
		data["host"] = gin.H{
			"hostname": hostInfo.Hostname,
			"os":       hostInfo.OS,
			"platform": hostInfo.Platform,
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory"] = gin.H{
			"total":        vm.Total,
			"used_percent": vm.UsedPercent,
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "service healthy")
}
