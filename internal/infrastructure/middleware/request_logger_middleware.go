package middleware

import (
	"time"

	"onebarn/pkg/logger"
	"onebarn/pkg/utils"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// HTTPMetricsRecorder receives one observation per finished request.
type HTTPMetricsRecorder interface {
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// RequestLogger tags each request with a request id, logs it when it finishes
// and reports it to the recorder when one is given.
func RequestLogger(cl *logger.ContextLogger, recorder HTTPMetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := utils.SanitizeString(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		requestID = utils.TruncateString(requestID, 64)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		cl.LogRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), duration.Milliseconds())
		if recorder != nil {
			recorder.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), duration)
		}
	}
}
