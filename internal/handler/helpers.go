package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/ai"
	"github.com/semdex/semdex/internal/pkg/errcode"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
	"github.com/semdex/semdex/internal/pkg/response"
)

const (
	defaultTopK = 10
	maxTopK     = 100
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrIndexBusy, err.Error())
	case errors.Is(err, appErr.ErrUnavailable), errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "inference provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}

func parseTopK(c *gin.Context) int {
	raw := c.Query("k")
	if raw == "" {
		return defaultTopK
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		return defaultTopK
	}
	if k > maxTopK {
		return maxTopK
	}
	return k
}
