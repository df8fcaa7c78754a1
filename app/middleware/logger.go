package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"fleetd/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"
)

// Logger logs one line per request with latency and status. POST bodies
// are compacted and truncated before logging.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var bodyStr string
		if c.Request.Method == http.MethodPost {
			bodyStr = getRequestBody(c)
		}

		c.Next()

		if c.Writer.Status() == http.StatusNotFound {
			return
		}

		latency := time.Since(startTime)
		if bodyStr != "" {
			logger.Infof("%3d | %13v | %15s | %s %s | body: %s",
				c.Writer.Status(), latency, c.ClientIP(), c.Request.Method, c.Request.RequestURI, bodyStr)
			return
		}
		logger.Infof("%3d | %13v | %15s | %s %s",
			c.Writer.Status(), latency, c.ClientIP(), c.Request.Method, c.Request.RequestURI)
	}
}

// getRequestBody gets request body content without consuming it
func getRequestBody(c *gin.Context) string {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return compressBody(bodyBytes)
}

// compressBody compacts JSON for single-line logging
func compressBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	compressed := pretty.Ugly(body)
	if len(compressed) > 1000 {
		return string(compressed[:1000]) + "..."
	}
	return string(compressed)
}
