package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/semdex/semdex/internal/pipeline"
	"github.com/semdex/semdex/internal/pkg/errcode"
	"github.com/semdex/semdex/internal/pkg/response"
)

type IndexHandler struct {
	runner     *pipeline.Runner
	pipelines  map[string]pipeline.Pipeline
	roots      map[string]string
	extensions map[string][]string
}

func NewIndexHandler(runner *pipeline.Runner, pipelines map[string]pipeline.Pipeline, roots map[string]string, extensions map[string][]string) *IndexHandler {
	return &IndexHandler{
		runner:     runner,
		pipelines:  pipelines,
		roots:      roots,
		extensions: extensions,
	}
}

type startIndexRequest struct {
	Modality string `json:"modality"`
	Dir      string `json:"dir"`
}

func (h *IndexHandler) Start(c *gin.Context) {
	var req startIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	p, ok := h.pipelines[req.Modality]
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown modality")
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = h.roots[req.Modality]
	}
	if dir == "" {
		response.Errorf(c, errcode.ErrInvalid, "dir required: no configured root for %s", req.Modality)
		return
	}
	// The run outlives the request, so it gets its own context.
	run, err := h.runner.Start(context.Background(), p, dir, h.extensions[req.Modality])
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, run.Status())
}

func (h *IndexHandler) Status(c *gin.Context) {
	run, ok := h.runner.Get(c.Param("id"))
	if !ok {
		response.Error(c, errcode.ErrNotFound, "unknown run")
		return
	}
	response.Success(c, run.Status())
}

func (h *IndexHandler) Cancel(c *gin.Context) {
	run, ok := h.runner.Get(c.Param("id"))
	if !ok {
		response.Error(c, errcode.ErrNotFound, "unknown run")
		return
	}
	run.Cancel()
	response.Success(c, run.Status())
}
