package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	CheckHealth(c *gin.Context)
	DiscoverCameras(c *gin.Context)
	ListCameras(c *gin.Context)
	GetCamera(c *gin.Context)
	TakeSnapshot(c *gin.Context)
	ControlPTZ(c *gin.Context)
	UpdateCameraSettings(c *gin.Context)
	StartStream(c *gin.Context)
	StopStream(c *gin.Context)
	GetStream(c *gin.Context)
	ListStreams(c *gin.Context)
	PublishAlert(c *gin.Context)
}

type WebSocketHandler interface {
	HandleEvents(c *gin.Context)
}
