package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/types"
	"go.uber.org/zap"
)

type AttendanceHandler struct {
	attendance *service.AttendanceService
	log        *zap.Logger
}

func NewAttendanceHandler(attendance *service.AttendanceService, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, log: log}
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	attendance := router.Group("/attendance")
	{
		attendance.GET("", h.List)
		attendance.POST("", h.Upsert)
		attendance.GET("/today", h.Today)
		attendance.GET("/student/:id", h.ForStudent)
		attendance.GET("/:id", h.Get)
		attendance.PUT("/:id", h.Update)
		attendance.PATCH("/:id", h.Update)
		attendance.DELETE("/:id", h.Delete)
	}
}

func (h *AttendanceHandler) list(c *gin.Context, recs []models.Attendance, err error) {
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]types.AttendanceResponse, 0, len(recs))
	for i := range recs {
		out = append(out, types.NewAttendanceResponse(&recs[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *AttendanceHandler) List(c *gin.Context) {
	recs, err := h.attendance.List(c.Request.Context())
	h.list(c, recs, err)
}

func (h *AttendanceHandler) Today(c *gin.Context) {
	recs, err := h.attendance.Today(c.Request.Context())
	h.list(c, recs, err)
}

func (h *AttendanceHandler) ForStudent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	recs, err := h.attendance.ForStudent(c.Request.Context(), id)
	h.list(c, recs, err)
}

// Upsert records attendance for (student, date, meal): 201 when the record
// is new, 200 when an existing one was updated in place.
func (h *AttendanceHandler) Upsert(c *gin.Context) {
	var in service.AttendanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	rec, created, err := h.attendance.Upsert(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, types.NewAttendanceResponse(rec))
}

func (h *AttendanceHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rec, err := h.attendance.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, types.NewAttendanceResponse(rec))
}

func (h *AttendanceHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in service.AttendanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	rec, err := h.attendance.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, types.NewAttendanceResponse(rec))
}

func (h *AttendanceHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.attendance.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
