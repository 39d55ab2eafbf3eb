package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/player"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
	"github.com/cory-johannsen/boxcars/internal/storage"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, player.ErrPlayerNotFound),
		errors.Is(err, conductor.ErrPromptNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, conductor.ErrRollInProgress),
		errors.Is(err, roll.ErrStaleRoll),
		errors.Is(err, conductor.ErrActiveSave):
		return http.StatusConflict
	case errors.Is(err, conductor.ErrSavesUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, errBadRequest),
		errors.Is(err, player.ErrStopIndex),
		errors.Is(err, player.ErrInvalidImport),
		errors.Is(err, conductor.ErrInvalidColor),
		errors.Is(err, conductor.ErrInvalidTrain),
		errors.Is(err, conductor.ErrUnknownCity),
		errors.Is(err, conductor.ErrInvalidAnswer),
		errors.Is(err, dataset.ErrUnknownMap):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
