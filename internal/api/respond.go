// Package api holds the HTTP handlers. Each handler struct carries the
// repository interfaces and logger it needs; wiring happens in main.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/teamchat/internal/apperr"
)

// respondError maps a structured error to its HTTP status. Internal
// errors are logged with their cause and returned with a generic
// message; every other kind carries a client-safe message already.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(e),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(e.HTTPStatus(), gin.H{"error": e.Message})
}

// channelIDParam parses the :channelId path parameter. A non-numeric
// or non-positive id is reported as a bad request.
func channelIDParam(c *gin.Context) (int64, bool) {
	id, err := parseChannelID(c.Param("channelId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return 0, false
	}
	return id, true
}

func parseChannelID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid channel id")
	}
	return id, nil
}

