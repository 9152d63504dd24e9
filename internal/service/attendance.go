package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttendanceInput is the API payload for attendance records. Nil and zero
// fields are left unchanged on update. Notes and Comment both set the
// record comment; Notes wins when both are sent.
type AttendanceInput struct {
	StudentID uint            `json:"student_id"`
	Date      string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Meal      models.MealType `json:"meal" validate:"omitempty,meal"`
	Present   *bool           `json:"present"`
	Notes     *string         `json:"notes"`
	Comment   *string         `json:"comment"`
	MenuID    *uint           `json:"menu_id"`
}

func (in AttendanceInput) comment() *string {
	if in.Notes != nil {
		return in.Notes
	}
	return in.Comment
}

type AttendanceService struct {
	db  *gorm.DB
	now Clock
}

func NewAttendanceService(db *gorm.DB, clock Clock) *AttendanceService {
	return &AttendanceService{db: db, now: defaultClock(clock)}
}

func (s *AttendanceService) today() time.Time {
	return models.DateOf(s.now())
}

func (s *AttendanceService) checkIn() *datatypes.Time {
	now := s.now()
	t := datatypes.NewTime(now.Hour(), now.Minute(), now.Second(), 0)
	return &t
}

func withStudent(db *gorm.DB) *gorm.DB {
	return db.Preload("Student.Class").Preload("Menu")
}

// Toggle flips today's attendance of an active student for meal. A missing
// record is created present; the menu link always follows today's menu.
func (s *AttendanceService) Toggle(ctx context.Context, studentID uint, meal models.MealType) (*models.Attendance, error) {
	if !meal.Valid() {
		meal = models.MealLunch
	}
	rec, err := s.toggle(ctx, studentID, meal)
	if err != nil && isDuplicate(err) {
		// another request created the row first
		rec, err = s.toggle(ctx, studentID, meal)
	}
	return rec, err
}

func (s *AttendanceService) toggle(ctx context.Context, studentID uint, meal models.MealType) (*models.Attendance, error) {
	today := s.today()
	var rec models.Attendance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.Where("id = ? AND active = ?", studentID, true).First(&student).Error; err != nil {
			return notFound(err)
		}
		menu, err := menuForDate(tx, today)
		if err != nil {
			return err
		}
		var menuID *uint
		if menu != nil {
			menuID = &menu.ID
		}

		err = tx.Where("student_id = ? AND date = ? AND meal = ?", studentID, today, meal).First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = models.Attendance{
				StudentID:   studentID,
				Date:        today,
				Meal:        meal,
				Present:     true,
				CheckInTime: s.checkIn(),
				MenuID:      menuID,
			}
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}

		rec.Present = !rec.Present
		if rec.Present {
			rec.CheckInTime = s.checkIn()
		} else {
			rec.CheckInTime = nil
		}
		rec.MenuID = menuID
		return tx.Model(&rec).Select("present", "check_in_time", "menu_id").Updates(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	rec.Student = nil
	return &rec, nil
}

// Upsert creates the record of (student, date, meal) or updates it in place
// when it already exists. created reports which one happened.
func (s *AttendanceService) Upsert(ctx context.Context, in AttendanceInput) (rec *models.Attendance, created bool, err error) {
	if err := validateStruct(in); err != nil {
		return nil, false, err
	}
	if in.StudentID == 0 {
		return nil, false, NewValidationError(errors.New("student required"), FieldError{Field: "student_id", Error: requiredText})
	}
	date := s.today()
	if d, err := time.Parse(dateLayout, in.Date); err == nil {
		date = d
	}
	meal := in.Meal
	if meal == "" {
		meal = models.MealLunch
	}

	rec, created, err = s.upsert(ctx, in, date, meal)
	if err != nil && isDuplicate(err) {
		rec, created, err = s.upsert(ctx, in, date, meal)
	}
	if err != nil {
		return nil, false, err
	}
	rec, err = s.Get(ctx, rec.ID)
	return rec, created, err
}

func (s *AttendanceService) upsert(ctx context.Context, in AttendanceInput, date time.Time, meal models.MealType) (*models.Attendance, bool, error) {
	var rec models.Attendance
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", in.StudentID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return NewValidationError(errors.New("unknown student"), FieldError{Field: "student_id", Error: "Select a valid student."})
		}

		err := tx.Where("student_id = ? AND date = ? AND meal = ?", in.StudentID, date, meal).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			rec = models.Attendance{StudentID: in.StudentID, Date: date, Meal: meal, Present: true}
			applyAttendance(&rec, in)
			return tx.Create(&rec).Error
		}
		if err != nil {
			return err
		}
		applyAttendance(&rec, in)
		return tx.Save(&rec).Error
	})
	return &rec, created, err
}

func applyAttendance(rec *models.Attendance, in AttendanceInput) {
	if in.Present != nil {
		rec.Present = *in.Present
	}
	if c := in.comment(); c != nil {
		rec.Comment = strings.TrimSpace(*c)
	}
	if in.MenuID != nil {
		rec.MenuID = in.MenuID
		if *in.MenuID == 0 {
			rec.MenuID = nil
		}
	}
}

// List returns every record, newest first then by student last name.
func (s *AttendanceService) List(ctx context.Context) ([]models.Attendance, error) {
	var recs []models.Attendance
	err := withStudent(s.db.WithContext(ctx)).
		Joins("JOIN students ON students.id = attendances.student_id").
		Order("attendances.date DESC, students.last_name").
		Find(&recs).Error
	return recs, err
}

// Today returns the records of the current date.
func (s *AttendanceService) Today(ctx context.Context) ([]models.Attendance, error) {
	var recs []models.Attendance
	err := withStudent(s.db.WithContext(ctx)).
		Joins("JOIN students ON students.id = attendances.student_id").
		Where("attendances.date = ?", s.today()).
		Order("students.last_name, attendances.meal").
		Find(&recs).Error
	return recs, err
}

// ForStudent returns the history of one student, newest first.
func (s *AttendanceService) ForStudent(ctx context.Context, studentID uint) ([]models.Attendance, error) {
	var recs []models.Attendance
	err := withStudent(s.db.WithContext(ctx)).
		Where("student_id = ?", studentID).
		Order("date DESC").
		Find(&recs).Error
	return recs, err
}

// PresentStudentIDs returns the students marked present on date.
func (s *AttendanceService) PresentStudentIDs(ctx context.Context, date time.Time) (map[uint]bool, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("date = ? AND present = ?", models.DateOf(date), true).
		Distinct().Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	present := make(map[uint]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	return present, nil
}

func (s *AttendanceService) Get(ctx context.Context, id uint) (*models.Attendance, error) {
	var rec models.Attendance
	if err := withStudent(s.db.WithContext(ctx)).First(&rec, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// Update changes a record in place. Moving it onto an existing
// (student, date, meal) is rejected.
func (s *AttendanceService) Update(ctx context.Context, id uint, in AttendanceInput) (*models.Attendance, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Student, rec.Menu = nil, nil
	if in.StudentID != 0 {
		rec.StudentID = in.StudentID
	}
	if d, err := time.Parse(dateLayout, in.Date); err == nil {
		rec.Date = d
	}
	if in.Meal != "" {
		rec.Meal = in.Meal
	}
	applyAttendance(rec, in)

	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, fieldConflict("date", "Attendance is already recorded for this student, date and meal.")
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *AttendanceService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Attendance{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
