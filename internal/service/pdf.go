package service

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/pageza/cantine/backend/internal/models"
)

var settlementColumns = []struct {
	title string
	width float64
}{
	{"Date", 25},
	{"Student", 60},
	{"Class", 30},
	{"Meal", 25},
	{"Menu", 50},
}

func newReportPDF(title, subtitle string) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(subtitle))
	pdf.Ln(4)
	pdf.SetDrawColor(144, 44, 142)
	pdf.SetLineWidth(0.5)
	pdf.Line(10, pdf.GetY()+2, 200, pdf.GetY()+2)
	pdf.Ln(8)
	return pdf, tr
}

func summaryLine(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(55, 6, tr(label))
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, tr(value))
	pdf.Ln(6)
}

func recordTable(pdf *gofpdf.Fpdf, tr func(string) string, recs []models.Attendance) {
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(144, 44, 142)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range settlementColumns {
		ln := 0
		if i == len(settlementColumns)-1 {
			ln = 1
		}
		pdf.CellFormat(col.width, 8, col.title, "1", ln, "C", true, 0, "")
	}

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, r := range recs {
		student, class, menu := "", "", ""
		if r.Student != nil {
			student = r.Student.FullName()
			class = r.Student.ClassName()
		}
		if r.Menu != nil {
			menu = r.Menu.MainCourse
		}
		cells := []string{r.Date.Format("02/01/2006"), student, class, r.Meal.Label(), menu}
		for i, col := range settlementColumns {
			ln := 0
			if i == len(settlementColumns)-1 {
				ln = 1
			}
			pdf.CellFormat(col.width, 7, tr(cells[i]), "1", ln, "L", false, 0, "")
		}
	}
}

// WriteDailyPDF renders a daily settlement as a PDF document.
func WriteDailyPDF(w io.Writer, d *DailySettlement) error {
	pdf, tr := newReportPDF("Daily settlement", d.Date.Format("Monday 02/01/2006"))
	menu := "No menu published"
	if d.Menu != nil {
		menu = d.Menu.MainCourse
	}
	summaryLine(pdf, tr, "Menu", menu)
	summaryLine(pdf, tr, "Meals served", fmt.Sprint(d.MealCount))
	summaryLine(pdf, tr, "Students served", fmt.Sprint(d.StudentCount))
	recordTable(pdf, tr, d.Records)
	return pdf.Output(w)
}

// WriteMonthlyPDF renders a monthly settlement with its per-day counts.
func WriteMonthlyPDF(w io.Writer, m *MonthlySettlement) error {
	pdf, tr := newReportPDF("Monthly settlement", m.Title())
	summaryLine(pdf, tr, "Meals served", fmt.Sprint(m.MealCount))
	summaryLine(pdf, tr, "Working days", fmt.Sprint(m.WorkingDays))
	summaryLine(pdf, tr, "Students served", fmt.Sprint(m.StudentCount))

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Meals per day")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 9)
	for _, d := range m.Days {
		pdf.CellFormat(40, 6, d.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprint(d.Count), "1", 1, "R", false, 0, "")
	}
	recordTable(pdf, tr, m.Records)
	return pdf.Output(w)
}
