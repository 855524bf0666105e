package http

import (
	"net/http"

	"onebarn/internal/core/domain"
	"onebarn/internal/core/ports"
	"onebarn/internal/core/services"
	"onebarn/internal/infrastructure/middleware"
	"onebarn/pkg/errors"
	"onebarn/pkg/validation"

	"github.com/gin-gonic/gin"
)

// CameraHandler exposes a tenant's camera bridge to the dashboard UI.
type CameraHandler struct {
	bridges     ports.BridgeProvider
	authService services.AuthService
}

func NewCameraHandler(bridges ports.BridgeProvider, authService services.AuthService) *CameraHandler {
	return &CameraHandler{
		bridges:     bridges,
		authService: authService,
	}
}

// SetupRoutes registers the camera and stream routes on an authenticated group.
func (h *CameraHandler) SetupRoutes(api *gin.RouterGroup) {
	owner := middleware.RequireRole(h.authService, domain.RoleOwner)

	api.GET("/health", h.CheckHealth)

	api.POST("/cameras/discover", h.DiscoverCameras)
	api.GET("/cameras", h.ListCameras)
	api.GET("/cameras/:cameraId", h.GetCamera)
	api.GET("/cameras/:cameraId/snapshot", h.TakeSnapshot)
	api.POST("/cameras/:cameraId/ptz", owner, h.ControlPTZ)
	api.PATCH("/cameras/:cameraId/settings", owner, h.UpdateCameraSettings)
	api.POST("/cameras/:cameraId/streams", h.StartStream)

	api.GET("/streams", h.ListStreams)
	api.GET("/streams/:streamId", h.GetStream)
	api.DELETE("/streams/:streamId", h.StopStream)

	api.POST("/alerts", h.PublishAlert)
}

type PTZRequest struct {
	Action domain.PTZAction `json:"action" binding:"required"`
	Value  *float64         `json:"value"`
}

type StartStreamRequest struct {
	Quality domain.Quality `json:"quality"`
}

type AlertRequest struct {
	CameraID domain.CameraID      `json:"cameraId"`
	Severity domain.AlertSeverity `json:"severity"`
	Source   string               `json:"source" binding:"max=64"`
	Message  string               `json:"message" binding:"required,max=500"`
}

type HealthResponse struct {
	Connected           bool                `json:"connected"`
	Status              domain.HealthStatus `json:"status"`
	Message             string              `json:"message,omitempty"`
	ConsecutiveFailures int                 `json:"consecutiveFailures"`
	BackoffMs           int64               `json:"backoffMs"`
}

func (h *CameraHandler) bridge(c *gin.Context) (ports.CameraBridge, bool) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		_ = c.Error(errors.NewUnauthorizedError("tenant is not known"))
		return nil, false
	}
	bridge, err := h.bridges.Get(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return bridge, true
}

func cameraID(c *gin.Context) (domain.CameraID, bool) {
	id := c.Param("cameraId")
	if err := validation.ValidateCameraID(id); err != nil {
		_ = c.Error(errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return domain.CameraID(id), true
}

func (h *CameraHandler) CheckHealth(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	res := bridge.CheckHealth(c.Request.Context())
	state := bridge.Connectivity()
	resp := HealthResponse{
		Connected:           res.Connected,
		Status:              res.Status,
		ConsecutiveFailures: state.ConsecutiveFailures,
		BackoffMs:           state.CurrentBackoff.Milliseconds(),
	}
	if appErr := errors.GetAppError(res.Err); appErr != nil {
		resp.Message = appErr.Message
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CameraHandler) DiscoverCameras(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	res, err := bridge.DiscoverCameras(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cameras":      res.Cameras,
		"usedFallback": res.UsedFallback,
	})
}

func (h *CameraHandler) ListCameras(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	cameras, err := bridge.ListCameras(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

func (h *CameraHandler) GetCamera(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}

	camera, err := bridge.GetCamera(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera})
}

func (h *CameraHandler) TakeSnapshot(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}

	dataURL, err := bridge.TakeSnapshot(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cameraId": id,
		"dataUrl":  dataURL,
	})
}

func (h *CameraHandler) ControlPTZ(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}

	var req PTZRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	if err := bridge.ControlPTZ(c.Request.Context(), id, req.Action, req.Value); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) UpdateCameraSettings(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}

	var patch domain.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	camera, err := bridge.UpdateCameraSettings(c.Request.Context(), id, patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"camera": camera})
}

func (h *CameraHandler) StartStream(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}
	id, ok := cameraID(c)
	if !ok {
		return
	}

	var req StartStreamRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errors.NewInvalidInputError("invalid request format"))
			return
		}
	}

	stream, err := bridge.StartStream(c.Request.Context(), id, req.Quality)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stream": stream})
}

func (h *CameraHandler) StopStream(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	if err := bridge.StopStream(c.Request.Context(), domain.StreamID(c.Param("streamId"))); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) GetStream(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	stream, err := bridge.GetStream(c.Request.Context(), domain.StreamID(c.Param("streamId")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

func (h *CameraHandler) ListStreams(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	streams, err := bridge.ListStreams(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	if c.Query("active") == "true" {
		active := streams[:0]
		for _, s := range streams {
			if s.Active {
				active = append(active, s)
			}
		}
		streams = active
	}
	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

func (h *CameraHandler) PublishAlert(c *gin.Context) {
	bridge, ok := h.bridge(c)
	if !ok {
		return
	}

	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	err := bridge.PublishAlert(c.Request.Context(), domain.Alert{
		CameraID: req.CameraID,
		Severity: req.Severity,
		Source:   req.Source,
		Message:  req.Message,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}

var _ ports.HTTPHandler = (*CameraHandler)(nil)
