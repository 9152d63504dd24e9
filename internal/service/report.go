package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	AlertWarning = "warning"
	AlertInfo    = "info"
)

type DashboardStats struct {
	TotalStudents     int64
	ActiveStudents    int64
	MealsToday        int64
	MealsThisMonth    int64
	NegativeBalances  int64
	EnrolledThisMonth int64
	TotalClasses      int64
}

type Alert struct {
	Level   string
	Message string
}

// TrendPoint is the attendance of one day. Ratio is the share of present
// records in percent, rounded to one decimal.
type TrendPoint struct {
	Date    time.Time
	Total   int64
	Present int64
	Ratio   float64
}

type CategoryTotal struct {
	Code  models.ExpenseCategory
	Label string
	Total decimal.Decimal
}

type FinancialSummary struct {
	Categories []CategoryTotal
	Total      decimal.Decimal
}

type ClassCount struct {
	ClassName string
	Total     int64
}

type DayCount struct {
	Date  time.Time
	Label string
	Count int64
}

type DailySettlement struct {
	Date         time.Time
	Menu         *models.DailyMenu
	Records      []models.Attendance
	StudentCount int
	MealCount    int
}

type MonthlySettlement struct {
	Year         int
	Month        int
	Records      []models.Attendance
	PerDay       map[string]int64
	Days         []DayCount
	WorkingDays  int
	StudentCount int
	MealCount    int
}

func (m MonthlySettlement) Title() string {
	return fmt.Sprintf("%s %d", models.MonthName(m.Month), m.Year)
}

// DishFilter narrows the served dishes report. Zero values match all.
type DishFilter struct {
	StudentID uint
	From      *time.Time
	To        *time.Time
}

type DishDetail struct {
	Records      []models.Attendance
	StudentCount int64
	MealCount    int64
}

// ReportService computes read-only summaries over attendance, menus,
// subscriptions and expenses.
type ReportService struct {
	db  *gorm.DB
	now Clock
}

func NewReportService(db *gorm.DB, clock Clock) *ReportService {
	return &ReportService{db: db, now: defaultClock(clock)}
}

func (s *ReportService) Today() time.Time {
	return models.DateOf(s.now())
}

func (s *ReportService) monthStart() time.Time {
	today := s.Today()
	first, _ := models.MonthBounds(today.Year(), int(today.Month()))
	return first
}

func (s *ReportService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	today, first := s.Today(), s.monthStart()
	stats := &DashboardStats{}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalStudents, db.Model(&models.Student{})},
		{&stats.ActiveStudents, db.Model(&models.Student{}).Where("active = ?", true)},
		{&stats.MealsToday, db.Model(&models.Attendance{}).Where("date = ? AND present = ?", today, true)},
		{&stats.MealsThisMonth, db.Model(&models.Attendance{}).Where("date BETWEEN ? AND ? AND present = ?", first, today, true)},
		{&stats.NegativeBalances, db.Model(&models.Subscription{}).Where("balance < 0")},
		{&stats.EnrolledThisMonth, db.Model(&models.Student{}).Where("enrolled_on >= ?", first)},
		{&stats.TotalClasses, db.Model(&models.Class{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// Alerts lists the conditions needing attention, warnings first.
func (s *ReportService) Alerts(ctx context.Context) ([]Alert, error) {
	db := s.db.WithContext(ctx)
	var alerts []Alert

	var negative int64
	if err := db.Model(&models.Subscription{}).Where("balance < 0").Count(&negative).Error; err != nil {
		return nil, err
	}
	if negative > 0 {
		alerts = append(alerts, Alert{
			Level:   AlertWarning,
			Message: fmt.Sprintf("%d student(s) have a negative balance.", negative),
		})
	}

	menu, err := menuForDate(db, s.Today())
	if err != nil {
		return nil, err
	}
	if menu == nil {
		alerts = append(alerts, Alert{Level: AlertInfo, Message: "No menu has been published for today."})
	}
	return alerts, nil
}

// AttendanceTrend summarizes the last days (today included) that have
// attendance records, oldest first.
func (s *ReportService) AttendanceTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days < 1 {
		days = 7
	}
	start := s.Today().AddDate(0, 0, -(days - 1))
	var rows []struct {
		Date    time.Time
		Total   int64
		Present int64
	}
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("date, COUNT(*) AS total, SUM(CASE WHEN present THEN 1 ELSE 0 END) AS present").
		Where("date >= ?", start).
		Group("date").
		Order("date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	trend := make([]TrendPoint, 0, len(rows))
	for _, r := range rows {
		trend = append(trend, TrendPoint{
			Date:    r.Date,
			Total:   r.Total,
			Present: r.Present,
			Ratio:   presenceRatio(r.Present, r.Total),
		})
	}
	return trend, nil
}

func presenceRatio(present, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(present)/float64(total)*1000) / 10
}

// FinancialSummary totals this month's expenses by category.
func (s *ReportService) FinancialSummary(ctx context.Context) (*FinancialSummary, error) {
	var rows []struct {
		Category models.ExpenseCategory
		Total    decimal.Decimal
	}
	err := s.db.WithContext(ctx).Model(&models.Expense{}).
		Select("category, COALESCE(SUM(amount), 0) AS total").
		Where("date >= ?", s.monthStart()).
		Group("category").
		Order("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summary := &FinancialSummary{Total: decimal.Zero}
	for _, r := range rows {
		summary.Categories = append(summary.Categories, CategoryTotal{
			Code:  r.Category,
			Label: r.Category.Label(),
			Total: r.Total,
		})
		summary.Total = summary.Total.Add(r.Total)
	}
	return summary, nil
}

// ReportingOverview returns the five classes with the most meals served.
func (s *ReportService) ReportingOverview(ctx context.Context) ([]ClassCount, error) {
	var rows []ClassCount
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("classes.name AS class_name, COUNT(attendances.id) AS total").
		Joins("JOIN students ON students.id = attendances.student_id").
		Joins("JOIN classes ON classes.id = students.class_id").
		Where("attendances.present = ?", true).
		Group("classes.name").
		Order("total DESC, classes.name").
		Limit(5).
		Scan(&rows).Error
	return rows, err
}

func presentRecords(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Attendance{}).
		Preload("Student.Class").
		Preload("Menu").
		Joins("JOIN students ON students.id = attendances.student_id").
		Where("attendances.present = ?", true)
}

func distinctStudents(recs []models.Attendance) int {
	seen := make(map[uint]struct{}, len(recs))
	for _, r := range recs {
		seen[r.StudentID] = struct{}{}
	}
	return len(seen)
}

// DailySettlement lists the meals served on date.
func (s *ReportService) DailySettlement(ctx context.Context, date time.Time) (*DailySettlement, error) {
	date = models.DateOf(date)
	db := s.db.WithContext(ctx)
	out := &DailySettlement{Date: date}
	err := presentRecords(db).
		Where("attendances.date = ?", date).
		Order("students.last_name, students.first_name").
		Find(&out.Records).Error
	if err != nil {
		return nil, err
	}
	if out.Menu, err = menuForDate(db, date); err != nil {
		return nil, err
	}
	out.MealCount = len(out.Records)
	out.StudentCount = distinctStudents(out.Records)
	return out, nil
}

// MonthlySettlement lists the meals served in month/year with per-day counts.
func (s *ReportService) MonthlySettlement(ctx context.Context, year, month int) (*MonthlySettlement, error) {
	first, last := models.MonthBounds(year, month)
	out := &MonthlySettlement{Year: year, Month: month, PerDay: map[string]int64{}}
	err := presentRecords(s.db.WithContext(ctx)).
		Where("attendances.date BETWEEN ? AND ?", first, last).
		Order("attendances.date, students.last_name").
		Find(&out.Records).Error
	if err != nil {
		return nil, err
	}
	for _, r := range out.Records {
		label := r.Date.Format("02/01/2006")
		if _, ok := out.PerDay[label]; !ok {
			out.Days = append(out.Days, DayCount{Date: r.Date, Label: label})
		}
		out.PerDay[label]++
	}
	for i := range out.Days {
		out.Days[i].Count = out.PerDay[out.Days[i].Label]
	}
	out.MealCount = len(out.Records)
	out.WorkingDays = len(out.Days)
	out.StudentCount = distinctStudents(out.Records)
	return out, nil
}

// DishDetail lists served meals matching filter, newest first.
func (s *ReportService) DishDetail(ctx context.Context, filter DishFilter) (*DishDetail, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if filter.StudentID != 0 {
			db = db.Where("attendances.student_id = ?", filter.StudentID)
		}
		if filter.From != nil {
			db = db.Where("attendances.date >= ?", models.DateOf(*filter.From))
		}
		if filter.To != nil {
			db = db.Where("attendances.date <= ?", models.DateOf(*filter.To))
		}
		return db
	}
	db := s.db.WithContext(ctx)
	out := &DishDetail{}
	err := presentRecords(db).Scopes(scope).
		Order("attendances.date DESC, students.last_name").
		Find(&out.Records).Error
	if err != nil {
		return nil, err
	}
	out.MealCount = int64(len(out.Records))
	out.StudentCount = int64(distinctStudents(out.Records))
	return out, nil
}

// RecentMeals returns the n latest meals served.
func (s *ReportService) RecentMeals(ctx context.Context, n int) ([]models.Attendance, error) {
	var recs []models.Attendance
	err := presentRecords(s.db.WithContext(ctx)).
		Order("attendances.date DESC, attendances.check_in_time DESC").
		Limit(n).
		Find(&recs).Error
	return recs, err
}

// MealsPerDay counts meals served per day over the last days, labelled "02/01".
func (s *ReportService) MealsPerDay(ctx context.Context, days int) ([]DayCount, error) {
	if days < 1 {
		days = 30
	}
	start := s.Today().AddDate(0, 0, -(days - 1))
	var rows []struct {
		Date  time.Time
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Select("date, COUNT(*) AS count").
		Where("date >= ? AND present = ?", start, true).
		Group("date").
		Order("date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DayCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, DayCount{Date: r.Date, Label: r.Date.Format("02/01"), Count: r.Count})
	}
	return out, nil
}
