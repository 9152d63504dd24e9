package models

import (
	"time"

	"gorm.io/datatypes"
)

type MealType string

const (
	MealLunch  MealType = "lunch"
	MealDinner MealType = "dinner"
)

func (m MealType) Label() string {
	switch m {
	case MealLunch:
		return "Lunch"
	case MealDinner:
		return "Dinner"
	}
	return string(m)
}

func (m MealType) Valid() bool {
	return m == MealLunch || m == MealDinner
}

// Attendance is one meal record. At most one exists per (student, date, meal).
type Attendance struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	StudentID   uint            `gorm:"not null;uniqueIndex:idx_attendance_student_date_meal" json:"student_id"`
	Student     *Student        `gorm:"constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Date        time.Time       `gorm:"type:date;not null;index;uniqueIndex:idx_attendance_student_date_meal" json:"date"`
	Meal        MealType        `gorm:"size:20;not null;default:'lunch';uniqueIndex:idx_attendance_student_date_meal" json:"meal"`
	Present     bool            `gorm:"not null" json:"present"`
	CheckInTime *datatypes.Time `json:"check_in_time"`
	Comment     string          `gorm:"type:text" json:"comment"`
	MenuID      *uint           `gorm:"index" json:"menu_id"`
	Menu        *DailyMenu      `gorm:"constraint:OnDelete:SET NULL" json:"menu,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
