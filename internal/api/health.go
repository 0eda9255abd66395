package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/nutrisnap/nutrisnap/internal/logger"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse is returned by GET /health
type HealthResponse struct {
	OK            bool         `json:"ok"`
	ModelState    string       `json:"model_state"`
	Database      string       `json:"database"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Host          *HostDetails `json:"host,omitempty"`
}

// HostDetails is included with ?details=true
type HostDetails struct {
	MemoryTotal       uint64  `json:"memory_total"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessRSS        uint64  `json:"process_rss"`
}

// Health handles GET /health. The service is reported ok while it can
// serve requests; the model state and database reachability are
// informational.
func (s *Server) Health(ctx echo.Context) error {
	resp := HealthResponse{
		OK:            true,
		ModelState:    "disabled",
		Database:      "ok",
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if s.model != nil {
		resp.ModelState = s.model.State().String()
	}

	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthPingTimeout)
	defer cancel()
	if err := s.analyzer.Ping(pingCtx); err != nil {
		resp.Database = "unreachable"
		s.log.WithContext(ctx.Request().Context()).Warn("database ping failed", logger.Error(err))
	}

	if details, _ := strconv.ParseBool(ctx.QueryParam("details")); details {
		resp.Host = s.hostDetails(ctx.Request().Context())
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *Server) hostDetails(ctx context.Context) *HostDetails {
	details := &HostDetails{}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		details.MemoryTotal = vm.Total
		details.MemoryUsedPercent = vm.UsedPercent
	} else {
		s.log.Debug("failed to read memory stats", logger.Error(err))
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			details.ProcessRSS = info.RSS
		}
	}
	return details
}
