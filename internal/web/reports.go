package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pageza/cantine/backend/internal/service"
)

func (h *Handler) dailySettlement(c *gin.Context) (*service.DailySettlement, error) {
	date := h.reports.Today()
	if d := queryDate(c, "date"); d != nil {
		date = *d
	}
	return h.reports.DailySettlement(c.Request.Context(), date)
}

func (h *Handler) DailyReport(c *gin.Context) {
	report, err := h.dailySettlement(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "report_daily", View{
		Title: "Daily settlement",
		Data:  gin.H{"Report": report},
	})
}

func (h *Handler) DailyReportPDF(c *gin.Context) {
	report, err := h.dailySettlement(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := service.WriteDailyPDF(&buf, report); err != nil {
		h.fail(c, err)
		return
	}
	sendPDF(c, fmt.Sprintf("settlement-%s.pdf", report.Date.Format(inputDate)), buf.Bytes())
}

func (h *Handler) MonthlyReport(c *gin.Context) {
	year, month := h.currentMonth(c)
	report, err := h.reports.MonthlySettlement(c.Request.Context(), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "report_monthly", View{
		Title: "Monthly settlement",
		Data:  gin.H{"Report": report},
	})
}

func (h *Handler) MonthlyReportPDF(c *gin.Context) {
	year, month := h.currentMonth(c)
	report, err := h.reports.MonthlySettlement(c.Request.Context(), year, month)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := service.WriteMonthlyPDF(&buf, report); err != nil {
		h.fail(c, err)
		return
	}
	sendPDF(c, fmt.Sprintf("settlement-%04d-%02d.pdf", year, month), buf.Bytes())
}

// DishReport lists served meals filtered by student and date range.
func (h *Handler) DishReport(c *gin.Context) {
	ctx := c.Request.Context()
	filter := service.DishFilter{From: queryDate(c, "from"), To: queryDate(c, "to")}
	if id := queryInt(c, "student", 0); id > 0 {
		filter.StudentID = uint(id)
	}
	report, err := h.reports.DishDetail(ctx, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	students, err := h.students.All(ctx, service.StudentFilter{})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.render(c, http.StatusOK, "report_dishes", View{
		Title: "Served dishes",
		Data: gin.H{
			"Report":    report,
			"Students":  students,
			"StudentID": filter.StudentID,
			"From":      filter.From,
			"To":        filter.To,
		},
	})
}

func sendPDF(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", body)
}
