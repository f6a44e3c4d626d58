package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/vies-api/internal/logstream"
	"github.com/sirupsen/logrus"
)

// LogsHandler exposes the live request/response log
type LogsHandler struct {
	stream *logstream.Stream
	logger *logrus.Logger
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(stream *logstream.Stream, logger *logrus.Logger) *LogsHandler {
	return &LogsHandler{stream: stream, logger: logger}
}

// GetLogs returns the buffered live-log lines, oldest first
// @Summary Live request log
// @Description Recent VIES request/response lines, mirroring what the lookups did
// @Tags Logs
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /logs [get]
func (h *LogsHandler) GetLogs(c *gin.Context) {
	lines := h.stream.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"lines":     lines,
		"count":     len(lines),
		"timestamp": time.Now(),
	})
}

// GetLogsText returns the buffered lines as plain text, one per line,
// matching the exportable on-screen log of the desktop workflow.
func (h *LogsHandler) GetLogsText(c *gin.Context) {
	lines := h.stream.Snapshot()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	for _, line := range lines {
		c.Writer.WriteString(line.Timestamp.Format(time.RFC3339))
		c.Writer.WriteString(" ")
		c.Writer.WriteString(line.Text)
		c.Writer.WriteString("\n")
	}
}
