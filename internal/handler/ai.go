package handlers

import (
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
)

type textRequest struct {
	Text string `json:"text" binding:"required"`
}

// Summarize 文本摘要
func (h *Handlers) Summarize(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "missing text", nil)
		return
	}

	summary, err := h.ai.Summarize(c.Request.Context(), req.Text)
	if err != nil {
		h.metrics.RecordAIRequest("summarize", "error")
		response.Error(c, err)
		return
	}
	h.metrics.RecordAIRequest("summarize", "ok")
	response.Success(c, "summary", gin.H{"summary": summary})
}

// AnalyzeSentiment 情感分析
func (h *Handlers) AnalyzeSentiment(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "missing text", nil)
		return
	}

	result, err := h.ai.AnalyzeSentiment(c.Request.Context(), req.Text)
	if err != nil {
		h.metrics.RecordAIRequest("sentiment", "error")
		response.Error(c, err)
		return
	}
	h.metrics.RecordAIRequest("sentiment", "ok")
	response.Success(c, "sentiment", result)
}
