package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/types"
	"go.uber.org/zap"
)

type MenuHandler struct {
	menus *service.MenuService
	log   *zap.Logger
}

func NewMenuHandler(menus *service.MenuService, log *zap.Logger) *MenuHandler {
	return &MenuHandler{menus: menus, log: log}
}

func (h *MenuHandler) RegisterRoutes(router *gin.RouterGroup) {
	daily := router.Group("/menus/daily")
	{
		daily.GET("", h.ListDaily)
		daily.POST("", h.CreateDaily)
		daily.GET("/:id", h.GetDaily)
		daily.PUT("/:id", h.UpdateDaily)
		daily.PATCH("/:id", h.UpdateDaily)
		daily.DELETE("/:id", h.DeleteDaily)
	}
	monthly := router.Group("/menus/monthly")
	{
		monthly.GET("", h.ListMonthly)
		monthly.POST("", h.CreateMonthly)
		monthly.GET("/:id", h.GetMonthly)
		monthly.PUT("/:id", h.UpdateMonthly)
		monthly.PATCH("/:id", h.UpdateMonthly)
		monthly.DELETE("/:id", h.DeleteMonthly)
	}
}

func (h *MenuHandler) daily(c *gin.Context, m *models.DailyMenu) types.DailyMenuResponse {
	return types.NewDailyMenuResponse(m, h.menus.URL(c.Request.Context(), m.Photo))
}

func (h *MenuHandler) monthly(c *gin.Context, m *models.MonthlyMenu) types.MonthlyMenuResponse {
	ctx := c.Request.Context()
	return types.NewMonthlyMenuResponse(m, h.menus.URL(ctx, m.Cover), h.menus.URL(ctx, m.Document))
}

// ListDaily lists daily menus newest first, optionally for one date.
func (h *MenuHandler) ListDaily(c *gin.Context) {
	menus, err := h.menus.DailyMenus(c.Request.Context(), queryDate(c, "date"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]types.DailyMenuResponse, 0, len(menus))
	for i := range menus {
		out = append(out, h.daily(c, &menus[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *MenuHandler) GetDaily(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.menus.GetDaily(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.daily(c, m))
}

func (h *MenuHandler) CreateDaily(c *gin.Context) {
	var in service.DailyMenuInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	m, err := h.menus.CreateDaily(c.Request.Context(), in, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, h.daily(c, m))
}

func (h *MenuHandler) UpdateDaily(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	current, err := h.menus.GetDaily(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	in := service.DailyMenuInputFrom(current)
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	m, err := h.menus.UpdateDaily(c.Request.Context(), id, in, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.daily(c, m))
}

func (h *MenuHandler) DeleteDaily(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.menus.DeleteDaily(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMonthly filters on year and month; either may be omitted.
func (h *MenuHandler) ListMonthly(c *gin.Context) {
	menus, err := h.menus.ListMonthly(c.Request.Context(), queryInt(c, "year"), queryInt(c, "month"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]types.MonthlyMenuResponse, 0, len(menus))
	for i := range menus {
		out = append(out, h.monthly(c, &menus[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *MenuHandler) GetMonthly(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	m, err := h.menus.GetMonthly(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.monthly(c, m))
}

func (h *MenuHandler) CreateMonthly(c *gin.Context) {
	var in service.MonthlyMenuInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	m, err := h.menus.CreateMonthly(c.Request.Context(), in, nil, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, h.monthly(c, m))
}

func (h *MenuHandler) UpdateMonthly(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	current, err := h.menus.GetMonthly(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	in := service.MonthlyMenuInputFrom(current)
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c)
		return
	}
	m, err := h.menus.UpdateMonthly(c.Request.Context(), id, in, nil, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.monthly(c, m))
}

func (h *MenuHandler) DeleteMonthly(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.menus.DeleteMonthly(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
