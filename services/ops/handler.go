package ops

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gamecore-events/pkg/errutil"
	"gamecore-events/services/events"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"gorm.io/datatypes"
)

// Handler is the admin surface over the event engine. It never contains
// engine logic of its own; every route forwards to the service.
type Handler struct {
	svc   *events.Service
	asynq *asynq.Client
}

type HandlerParams struct {
	fx.In
	Service *events.Service
	Asynq   *asynq.Client `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{svc: p.Service, asynq: p.Asynq}
}

func (h *Handler) Register(r gin.IRouter) {
	admin := r.Group("/admin/events")
	admin.POST("", h.CreateDefinition)
	admin.GET("/health", h.Health)
	admin.POST("/:id/effects", h.CreateEffect)
	admin.POST("/:id/trigger", h.Trigger)
	admin.POST("/:id/enable", h.setActive(true))
	admin.POST("/:id/disable", h.setActive(false))
	admin.POST("/:id/duplicate", h.Duplicate)
	admin.DELETE("/:id", h.DeleteDefinition)

	occ := r.Group("/admin/occurrences")
	occ.POST("/:id/cancel", h.CancelOccurrence)

	passes := r.Group("/admin/passes")
	passes.POST("/schedule", h.RunSchedule)
	passes.POST("/execute", h.RunExecute)
	passes.POST("/expire", h.RunExpire)
}

func abortWithError(c *gin.Context, err error) {
	var be errutil.BaseError
	if errors.As(err, &be) {
		c.JSON(be.Code.HTTPCode(), be.JSON())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": errutil.StatusInternal, "message": err.Error()},
	})
}

func marshalParams(params map[string]any) (datatypes.JSON, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

type createDefinitionRequest struct {
	Name             string `json:"name" binding:"required"`
	Category         string `json:"category" binding:"required"`
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	ScheduleType     string `json:"schedule_type"`
	ScheduleInterval int    `json:"schedule_interval"`
	CreatedBy        string `json:"created_by"`
}

func (h *Handler) CreateDefinition(c *gin.Context) {
	var req createDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errutil.BadRequest("invalid request body", err))
		return
	}

	def := events.EventDefinition{
		Name:             req.Name,
		Category:         events.Category(req.Category),
		Title:            req.Title,
		Description:      req.Description,
		ScheduleType:     events.ScheduleType(req.ScheduleType),
		ScheduleInterval: req.ScheduleInterval,
		IsActive:         true,
		CreatedBy:        req.CreatedBy,
	}
	if def.ScheduleType == "" {
		def.ScheduleType = events.ScheduleManual
	}

	if err := h.svc.CreateDefinition(c.Request.Context(), &def); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

type createEffectRequest struct {
	EffectType      string         `json:"effect_type" binding:"required"`
	TargetType      string         `json:"target_type" binding:"required"`
	TargetParams    map[string]any `json:"target_params"`
	EffectParams    map[string]any `json:"effect_params"`
	DurationMinutes int            `json:"duration_minutes"`
	Priority        int            `json:"priority"`
}

func (h *Handler) CreateEffect(c *gin.Context) {
	var req createEffectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errutil.BadRequest("invalid request body", err))
		return
	}

	targetParams, err := marshalParams(req.TargetParams)
	if err != nil {
		abortWithError(c, errutil.BadRequest("invalid target_params", err))
		return
	}
	effectParams, err := marshalParams(req.EffectParams)
	if err != nil {
		abortWithError(c, errutil.BadRequest("invalid effect_params", err))
		return
	}

	priority := req.Priority
	if priority == 0 {
		priority = 100
	}

	effect := events.EventEffect{
		DefinitionID:    c.Param("id"),
		EffectType:      events.EffectType(req.EffectType),
		TargetType:      events.TargetType(req.TargetType),
		TargetParams:    targetParams,
		EffectParams:    effectParams,
		DurationMinutes: req.DurationMinutes,
		Priority:        priority,
		IsActive:        true,
	}

	if err := h.svc.CreateEffect(c.Request.Context(), &effect); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, effect)
}

type triggerRequest struct {
	TriggeredBy string `json:"triggered_by"`
	Async       bool   `json:"async"`
}

// Trigger fires a definition immediately. With async=true the trigger is
// queued and executed by the worker instead of inline. The body is optional.
func (h *Handler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, errutil.BadRequest("invalid request body", err))
		return
	}

	definitionID := c.Param("id")

	if req.Async {
		if h.asynq == nil {
			abortWithError(c, errutil.NotImplemented("async trigger requires a task queue", nil))
			return
		}
		if err := h.svc.EnqueueManualTrigger(h.asynq, definitionID, req.TriggeredBy); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "definition_id": definitionID})
		return
	}

	result, err := h.svc.TriggerManual(c.Request.Context(), definitionID, req.TriggeredBy)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if result.Status == "error" {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) setActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.svc.SetDefinitionActive(c.Request.Context(), c.Param("id"), active); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "is_active": active})
	}
}

type duplicateRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) Duplicate(c *gin.Context) {
	var req duplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errutil.BadRequest("invalid request body", err))
		return
	}

	dup, err := h.svc.DuplicateDefinition(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dup)
}

func (h *Handler) DeleteDefinition(c *gin.Context) {
	if err := h.svc.DeleteDefinition(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CancelOccurrence(c *gin.Context) {
	if err := h.svc.CancelOccurrence(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": events.StatusCancelled})
}

func (h *Handler) Health(c *gin.Context) {
	report := h.svc.HealthCheck(c.Request.Context(), time.Now())
	code := http.StatusOK
	if report.Status == "error" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (h *Handler) RunSchedule(c *gin.Context) {
	summary, err := h.svc.SchedulePending(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) RunExecute(c *gin.Context) {
	summary, err := h.svc.ExecutePending(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) RunExpire(c *gin.Context) {
	summary, err := h.svc.ProcessExpired(c.Request.Context(), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
