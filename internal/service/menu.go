package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"
)

const (
	duplicateMenuMessage    = "A menu already exists for this date."
	duplicateMonthlyMessage = "A monthly menu already exists for this month."
)

type DailyMenuInput struct {
	Date       string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Starter    string `form:"starter" json:"starter" validate:"max=150"`
	MainCourse string `form:"main_course" json:"main_course" validate:"required,max=150"`
	SideDish   string `form:"side_dish" json:"side_dish" validate:"max=150"`
	Dessert    string `form:"dessert" json:"dessert" validate:"max=150"`
	Drink      string `form:"drink" json:"drink" validate:"max=150"`
	Comments   string `form:"comments" json:"comments"`
}

func DailyMenuInputFrom(m *models.DailyMenu) DailyMenuInput {
	return DailyMenuInput{
		Date:       m.Date.Format(dateLayout),
		Starter:    m.Starter,
		MainCourse: m.MainCourse,
		SideDish:   m.SideDish,
		Dessert:    m.Dessert,
		Drink:      m.Drink,
		Comments:   m.Comments,
	}
}

type MonthlyMenuInput struct {
	Title       string `form:"title" json:"title" validate:"required,max=150"`
	Month       int    `form:"month" json:"month" validate:"required,min=1,max=12"`
	Year        int    `form:"year" json:"year" validate:"required,min=2000,max=2100"`
	Description string `form:"description" json:"description"`
}

func MonthlyMenuInputFrom(m *models.MonthlyMenu) MonthlyMenuInput {
	return MonthlyMenuInput{Title: m.Title, Month: m.Month, Year: m.Year, Description: m.Description}
}

// CalendarDay is one cell of the menu calendar.
type CalendarDay struct {
	Date       time.Time
	Day        int
	OtherMonth bool
	IsToday    bool
	Menu       *models.DailyMenu
}

// CalendarMonth is a Monday-first month grid.
type CalendarMonth struct {
	Year  int
	Month int
	Days  []CalendarDay
}

func (c CalendarMonth) Weeks() [][]CalendarDay {
	var weeks [][]CalendarDay
	for i := 0; i < len(c.Days); i += 7 {
		end := i + 7
		if end > len(c.Days) {
			end = len(c.Days)
		}
		weeks = append(weeks, c.Days[i:end])
	}
	return weeks
}

func (c CalendarMonth) Title() string {
	return fmt.Sprintf("%s %d", models.MonthName(c.Month), c.Year)
}

func (c CalendarMonth) Prev() (int, int) {
	if c.Month == 1 {
		return c.Year - 1, 12
	}
	return c.Year, c.Month - 1
}

func (c CalendarMonth) Next() (int, int) {
	if c.Month == 12 {
		return c.Year + 1, 1
	}
	return c.Year, c.Month + 1
}

// NormalizeMonth wraps month values just outside 1-12 into the adjacent year.
func NormalizeMonth(year, month int) (int, int) {
	if month < 1 {
		return year - 1, 12
	}
	if month > 12 {
		return year + 1, 1
	}
	return year, month
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts a menu description to HTML. Raw HTML in the
// source is not passed through.
func RenderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

type MenuService struct {
	db    *gorm.DB
	media *MediaService
	now   Clock
}

func NewMenuService(db *gorm.DB, media *MediaService, clock Clock) *MenuService {
	return &MenuService{db: db, media: media, now: defaultClock(clock)}
}

func (s *MenuService) Today() time.Time {
	return models.DateOf(s.now())
}

// ListDaily returns one page of daily menus, newest first.
func (s *MenuService) ListDaily(ctx context.Context, page Page) ([]models.DailyMenu, PageInfo, error) {
	page = page.normalize()
	db := s.db.WithContext(ctx)
	var total int64
	if err := db.Model(&models.DailyMenu{}).Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var menus []models.DailyMenu
	err := db.Order("date DESC").Offset(page.offset()).Limit(page.Size).Find(&menus).Error
	if err != nil {
		return nil, PageInfo{}, err
	}
	return menus, PageInfo{Number: page.Number, Size: page.Size, Total: total}, nil
}

// DailyMenus lists daily menus newest first, restricted to one date when given.
func (s *MenuService) DailyMenus(ctx context.Context, date *time.Time) ([]models.DailyMenu, error) {
	q := s.db.WithContext(ctx).Order("date DESC")
	if date != nil {
		q = q.Where("date = ?", models.DateOf(*date))
	}
	var menus []models.DailyMenu
	return menus, q.Find(&menus).Error
}

// RecentDaily returns the n latest daily menus.
func (s *MenuService) RecentDaily(ctx context.Context, n int) ([]models.DailyMenu, error) {
	var menus []models.DailyMenu
	err := s.db.WithContext(ctx).Order("date DESC").Limit(n).Find(&menus).Error
	return menus, err
}

// Upcoming returns the next n daily menus starting today.
func (s *MenuService) Upcoming(ctx context.Context, n int) ([]models.DailyMenu, error) {
	var menus []models.DailyMenu
	err := s.db.WithContext(ctx).
		Where("date >= ?", s.Today()).
		Order("date").Limit(n).
		Find(&menus).Error
	return menus, err
}

// MenuForDate returns the daily menu of date, or nil when none is published.
func (s *MenuService) MenuForDate(ctx context.Context, date time.Time) (*models.DailyMenu, error) {
	return menuForDate(s.db.WithContext(ctx), date)
}

func menuForDate(db *gorm.DB, date time.Time) (*models.DailyMenu, error) {
	var menu models.DailyMenu
	err := db.Where("date = ?", models.DateOf(date)).Limit(1).Find(&menu).Error
	if err != nil {
		return nil, err
	}
	if menu.ID == 0 {
		return nil, nil
	}
	return &menu, nil
}

func (s *MenuService) GetDaily(ctx context.Context, id uint) (*models.DailyMenu, error) {
	var menu models.DailyMenu
	if err := s.db.WithContext(ctx).First(&menu, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &menu, nil
}

func applyDaily(m *models.DailyMenu, in DailyMenuInput) {
	if d, err := time.Parse(dateLayout, in.Date); err == nil {
		m.Date = d
	}
	m.Starter = strings.TrimSpace(in.Starter)
	m.MainCourse = strings.TrimSpace(in.MainCourse)
	m.SideDish = strings.TrimSpace(in.SideDish)
	m.Dessert = strings.TrimSpace(in.Dessert)
	m.Drink = strings.TrimSpace(in.Drink)
	m.Comments = in.Comments
}

func (s *MenuService) storeDailyPhoto(ctx context.Context, m *models.DailyMenu, photo *Upload) (string, error) {
	if photo == nil {
		return "", nil
	}
	return s.media.StoreImage(ctx, "menus/daily/"+m.Date.Format("2006/01/02"), photo)
}

// CreateDaily publishes the menu of one date. A second menu for the same
// date is rejected with a field error on date.
func (s *MenuService) CreateDaily(ctx context.Context, in DailyMenuInput, photo *Upload) (*models.DailyMenu, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	menu := &models.DailyMenu{}
	applyDaily(menu, in)

	key, err := s.storeDailyPhoto(ctx, menu, photo)
	if err != nil {
		return nil, err
	}
	menu.Photo = key
	if err := s.db.WithContext(ctx).Create(menu).Error; err != nil {
		_ = s.media.Remove(ctx, key)
		if isDuplicate(err) {
			return nil, fieldConflict("date", duplicateMenuMessage)
		}
		return nil, err
	}
	return menu, nil
}

func (s *MenuService) UpdateDaily(ctx context.Context, id uint, in DailyMenuInput, photo *Upload) (*models.DailyMenu, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	menu, err := s.GetDaily(ctx, id)
	if err != nil {
		return nil, err
	}
	applyDaily(menu, in)

	key, err := s.storeDailyPhoto(ctx, menu, photo)
	if err != nil {
		return nil, err
	}
	oldPhoto := ""
	if key != "" {
		oldPhoto, menu.Photo = menu.Photo, key
	}
	if err := s.db.WithContext(ctx).Save(menu).Error; err != nil {
		_ = s.media.Remove(ctx, key)
		if isDuplicate(err) {
			return nil, fieldConflict("date", duplicateMenuMessage)
		}
		return nil, err
	}
	_ = s.media.Remove(ctx, oldPhoto)
	return menu, nil
}

// DeleteDaily removes a daily menu. Attendance records keep existing
// without a menu link.
func (s *MenuService) DeleteDaily(ctx context.Context, id uint) error {
	menu, err := s.GetDaily(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Attendance{}).Where("menu_id = ?", id).Update("menu_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.DailyMenu{}, id).Error
	})
	if err != nil {
		return err
	}
	_ = s.media.Remove(ctx, menu.Photo)
	return nil
}

// ListMonthly lists monthly menus, latest period first. Zero year or month
// means no restriction.
func (s *MenuService) ListMonthly(ctx context.Context, year, month int) ([]models.MonthlyMenu, error) {
	q := s.db.WithContext(ctx).Order("year DESC, month DESC")
	if year != 0 {
		q = q.Where("year = ?", year)
	}
	if month != 0 {
		q = q.Where("month = ?", month)
	}
	var menus []models.MonthlyMenu
	return menus, q.Find(&menus).Error
}

// RecentMonthly returns the n latest monthly menus.
func (s *MenuService) RecentMonthly(ctx context.Context, n int) ([]models.MonthlyMenu, error) {
	var menus []models.MonthlyMenu
	err := s.db.WithContext(ctx).Order("year DESC, month DESC").Limit(n).Find(&menus).Error
	return menus, err
}

func (s *MenuService) GetMonthly(ctx context.Context, id uint) (*models.MonthlyMenu, error) {
	var menu models.MonthlyMenu
	if err := s.db.WithContext(ctx).First(&menu, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &menu, nil
}

func (s *MenuService) storeMonthlyFiles(ctx context.Context, m *models.MonthlyMenu, cover, document *Upload) (string, string, error) {
	prefix := fmt.Sprintf("menus/monthly/%d/%02d", m.Year, m.Month)
	var coverKey, docKey string
	var err error
	if cover != nil {
		if coverKey, err = s.media.StoreImage(ctx, prefix, cover); err != nil {
			return "", "", err
		}
	}
	if document != nil {
		if docKey, err = s.media.StoreFile(ctx, prefix, document); err != nil {
			_ = s.media.Remove(ctx, coverKey)
			return "", "", err
		}
	}
	return coverKey, docKey, nil
}

func (s *MenuService) CreateMonthly(ctx context.Context, in MonthlyMenuInput, cover, document *Upload) (*models.MonthlyMenu, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	menu := &models.MonthlyMenu{Title: in.Title, Month: in.Month, Year: in.Year, Description: in.Description}
	coverKey, docKey, err := s.storeMonthlyFiles(ctx, menu, cover, document)
	if err != nil {
		return nil, err
	}
	menu.Cover, menu.Document = coverKey, docKey
	if err := s.db.WithContext(ctx).Create(menu).Error; err != nil {
		_ = s.media.Remove(ctx, coverKey)
		_ = s.media.Remove(ctx, docKey)
		if isDuplicate(err) {
			return nil, fieldConflict("month", duplicateMonthlyMessage)
		}
		return nil, err
	}
	return menu, nil
}

func (s *MenuService) UpdateMonthly(ctx context.Context, id uint, in MonthlyMenuInput, cover, document *Upload) (*models.MonthlyMenu, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	menu, err := s.GetMonthly(ctx, id)
	if err != nil {
		return nil, err
	}
	menu.Title, menu.Month, menu.Year, menu.Description = in.Title, in.Month, in.Year, in.Description

	coverKey, docKey, err := s.storeMonthlyFiles(ctx, menu, cover, document)
	if err != nil {
		return nil, err
	}
	var stale []string
	if coverKey != "" {
		stale = append(stale, menu.Cover)
		menu.Cover = coverKey
	}
	if docKey != "" {
		stale = append(stale, menu.Document)
		menu.Document = docKey
	}
	if err := s.db.WithContext(ctx).Save(menu).Error; err != nil {
		_ = s.media.Remove(ctx, coverKey)
		_ = s.media.Remove(ctx, docKey)
		if isDuplicate(err) {
			return nil, fieldConflict("month", duplicateMonthlyMessage)
		}
		return nil, err
	}
	for _, key := range stale {
		_ = s.media.Remove(ctx, key)
	}
	return menu, nil
}

func (s *MenuService) DeleteMonthly(ctx context.Context, id uint) error {
	menu, err := s.GetMonthly(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.MonthlyMenu{}, id).Error; err != nil {
		return err
	}
	_ = s.media.Remove(ctx, menu.Cover)
	_ = s.media.Remove(ctx, menu.Document)
	return nil
}

// Calendar builds the Monday-first grid of month/year with the daily menu
// of every visible day.
func (s *MenuService) Calendar(ctx context.Context, year, month int) (*CalendarMonth, error) {
	year, month = NormalizeMonth(year, month)
	first, last := models.MonthBounds(year, month)
	start := first.AddDate(0, 0, -((int(first.Weekday()) + 6) % 7))
	end := last.AddDate(0, 0, 6-(int(last.Weekday())+6)%7)

	var menus []models.DailyMenu
	err := s.db.WithContext(ctx).Where("date BETWEEN ? AND ?", start, end).Find(&menus).Error
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*models.DailyMenu, len(menus))
	for i := range menus {
		byDate[menus[i].Date.Format(dateLayout)] = &menus[i]
	}

	today := s.Today()
	cal := &CalendarMonth{Year: year, Month: month}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cal.Days = append(cal.Days, CalendarDay{
			Date:       d,
			Day:        d.Day(),
			OtherMonth: int(d.Month()) != month,
			IsToday:    d.Equal(today),
			Menu:       byDate[d.Format(dateLayout)],
		})
	}
	return cal, nil
}

// URL resolves a stored media key.
func (s *MenuService) URL(ctx context.Context, key string) string {
	return s.media.URL(ctx, key)
}
