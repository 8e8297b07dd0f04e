package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type AdminHandler struct {
	cfg    *config.Config
	usage  *services.UsageService
	update *services.UpdateService
}

func NewAdminHandler(cfg *config.Config, usage *services.UsageService, update *services.UpdateService) *AdminHandler {
	return &AdminHandler{cfg: cfg, usage: usage, update: update}
}

// TriggerUpdate enqueues a manual data update. 409 when one is already
// pending or running.
func (h *AdminHandler) TriggerUpdate(c *gin.Context) {
	task, err := h.update.Trigger(models.TaskTriggerManual)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, task)
}

func (h *AdminHandler) GetTask(c *gin.Context) {
	task, err := h.update.GetTask(c.Param("id"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, task)
}

func (h *AdminHandler) ListTasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	tasks, err := h.update.ListTasks(limit)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, tasks)
}

// CancelTask requests cancellation of a running update.
func (h *AdminHandler) CancelTask(c *gin.Context) {
	if err := h.update.Cancel(c.Param("id")); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"task_id": c.Param("id"), "status": "cancellation_requested"})
}

// GetAPIUsage returns a month's provider call summary. ?month=YYYY-MM,
// default current.
func (h *AdminHandler) GetAPIUsage(c *gin.Context) {
	summary, err := h.usage.Summary(c.Query("month"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, summary)
}

// GetUsageDashboard extends the summary with a month-end projection.
func (h *AdminHandler) GetUsageDashboard(c *gin.Context) {
	dashboard, err := h.usage.Dashboard(c.Query("month"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, dashboard)
}

func (h *AdminHandler) GetConfig(c *gin.Context) {
	utils.SendSuccess(c, h.cfg.Snapshot())
}

// UpdateConfig replaces the runtime settings. The full settings object
// is required; invalid combinations are rejected wholesale.
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	settings := h.cfg.Snapshot()
	if err := c.ShouldBindJSON(&settings); err != nil {
		utils.SendValidationError(c, "Invalid settings payload", err.Error())
		return
	}
	if err := h.cfg.Apply(settings); err != nil {
		utils.SendValidationError(c, "Settings rejected", err.Error())
		return
	}
	// The cron entry was built from the old settings; rebuild it so a
	// changed weekly schedule actually fires.
	if err := h.update.Reschedule(); err != nil {
		utils.SendInternalError(c, "Settings saved but rescheduling failed")
		return
	}
	utils.SendSuccess(c, h.cfg.Snapshot())
}
