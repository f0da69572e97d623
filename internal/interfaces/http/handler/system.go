package handler

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/titledesk/backend/internal/interfaces/http/dto"
)

const apiName = "TitleDesk Backend API"

// SystemHandler serves the liveness and build-information endpoints. Both
// sit outside authentication so probes and operators can always reach them.
type SystemHandler struct {
	BaseHandler
	version   string
	revision  string
	startedAt time.Time
}

// NewSystemHandler reports the given release version. The VCS revision is
// read from the build info stamped into the binary; an empty version falls
// back to "dev".
func NewSystemHandler(version string) *SystemHandler {
	if version == "" {
		version = "dev"
	}
	return &SystemHandler{
		version:   version,
		revision:  buildRevision(),
		startedAt: time.Now(),
	}
}

// buildRevision returns the commit hash recorded by the Go toolchain, or ""
// for binaries built without VCS stamping (go test, plain go build outside
// a checkout).
func buildRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

// SystemInfoResponse describes the running binary
type SystemInfoResponse struct {
	Name      string `json:"name" example:"TitleDesk Backend API"`
	Version   string `json:"version" example:"1.0.0"`
	Revision  string `json:"revision,omitempty" example:"3f9e2a1c"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns the release version, build revision, and uptime of the running instance
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=SystemInfoResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      apiName,
		Version:   h.version,
		Revision:  h.revision,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse carries the liveness probe reply
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Liveness probe; answers without touching the database or the tracker
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=PingResponse}
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}))
}
