package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/types"
	"go.uber.org/zap"
)

type StudentHandler struct {
	students *service.StudentService
	log      *zap.Logger
}

func NewStudentHandler(students *service.StudentService, log *zap.Logger) *StudentHandler {
	return &StudentHandler{students: students, log: log}
}

// RegisterRoutes mounts the student endpoints; write routes go through adminOnly.
func (h *StudentHandler) RegisterRoutes(router *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	students := router.Group("/students")
	{
		students.GET("", h.List)
		students.GET("/:id", h.Get)
		students.POST("", adminOnly, h.Create)
		students.PUT("/:id", adminOnly, h.Update)
		students.PATCH("/:id", adminOnly, h.Update)
		students.DELETE("/:id", adminOnly, h.Delete)
	}
}

func (h *StudentHandler) respond(c *gin.Context, status int, st *models.Student) {
	c.JSON(status, types.NewStudentResponse(st, h.students.PhotoURL(c.Request.Context(), st)))
}

// List filters by class name; only active students are listed unless
// active is set to something other than true.
func (h *StudentHandler) List(c *gin.Context) {
	filter := service.StudentFilter{ClassName: c.Query("class")}
	if strings.EqualFold(c.DefaultQuery("active", "true"), "true") {
		active := true
		filter.Active = &active
	}

	students, err := h.students.All(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]types.StudentResponse, 0, len(students))
	for i := range students {
		out = append(out, types.NewStudentResponse(&students[i], h.students.PhotoURL(c.Request.Context(), &students[i])))
	}
	c.JSON(http.StatusOK, out)
}

func (h *StudentHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	st, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusOK, st)
}

func (h *StudentHandler) Create(c *gin.Context) {
	in := service.StudentInput{Active: true}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	st, err := h.students.Create(c.Request.Context(), in, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusCreated, st)
}

// Update serves PUT and PATCH. Both overlay the request body on the
// current values, so omitted fields are kept.
func (h *StudentHandler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	current, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	in := service.StudentInputFrom(current)
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	st, err := h.students.Update(c.Request.Context(), id, in, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.respond(c, http.StatusOK, st)
}

func (h *StudentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
