package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/semdex/semdex/internal/pipeline"
	"github.com/semdex/semdex/internal/pkg/errcode"
	"github.com/semdex/semdex/internal/pkg/response"
)

type SearchHandler struct {
	pipelines map[string]pipeline.Pipeline
	text      *pipeline.TextPipeline
}

func NewSearchHandler(pipelines map[string]pipeline.Pipeline, text *pipeline.TextPipeline) *SearchHandler {
	return &SearchHandler{pipelines: pipelines, text: text}
}

func (h *SearchHandler) Search(c *gin.Context) {
	modality := c.DefaultQuery("modality", "text")
	p, ok := h.pipelines[modality]
	if !ok {
		response.Error(c, errcode.ErrInvalid, "unknown modality")
		return
	}
	query := c.Query("q")
	if query == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	results, err := p.Search(c.Request.Context(), query, parseTopK(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"modality": modality,
		"results":  results,
	})
}

// Snippet returns the matched sentence in its surrounding file context.
// Only text results carry enough information for this.
func (h *SearchHandler) Snippet(c *gin.Context) {
	path := c.Query("path")
	matched := c.Query("matched")
	if path == "" || matched == "" {
		response.Error(c, errcode.ErrInvalid, "path and matched are required")
		return
	}
	response.Success(c, gin.H{
		"snippet": h.text.Snippet(path, matched),
	})
}
