package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/krono-analysis/krono-extract-go/internal/repository"
)

// RunHandler 运行报告查询接口
type RunHandler struct {
	runs     repository.RunRepository
	failures repository.FailureRepository
	logger   *logrus.Logger
}

// NewRunHandler 创建处理器
func NewRunHandler(runs repository.RunRepository, failures repository.FailureRepository, logger *logrus.Logger) *RunHandler {
	return &RunHandler{runs: runs, failures: failures, logger: logger}
}

// ListRuns 最近的提取运行列表
// GET /api/v1/runs?limit=20
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(runs),
		"runs":  runs,
	})
}

// GetRun 单次运行详情
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runs.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		h.logger.WithError(err).Error("Failed to find run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListFailures 某次运行的失败明细
// GET /api/v1/runs/:id/failures?limit=100
func (h *RunHandler) ListFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.failures.ListByRun(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list failures")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":    len(records),
		"failures": records,
	})
}

// FailureSummary 某次运行的失败归因统计
// GET /api/v1/runs/:id/failures/summary
func (h *RunHandler) FailureSummary(c *gin.Context) {
	counts, err := h.failures.CountByReason(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to summarize failures")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize failures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":  c.Param("id"),
		"reasons": counts,
	})
}
