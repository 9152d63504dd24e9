package models

import (
	"fmt"
	"time"
)

type DailyMenu struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Date       time.Time `gorm:"type:date;not null;uniqueIndex" json:"date"`
	Starter    string    `gorm:"size:150" json:"starter"`
	MainCourse string    `gorm:"size:150;not null" json:"main_course"`
	SideDish   string    `gorm:"size:150" json:"side_dish"`
	Dessert    string    `gorm:"size:150" json:"dessert"`
	Drink      string    `gorm:"size:150" json:"drink"`
	Comments   string    `gorm:"type:text" json:"comments"`
	Photo      string    `gorm:"size:255" json:"photo"`
}

func (m DailyMenu) String() string {
	return "Menu of " + m.Date.Format("02/01/2006")
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English name of month m (1-12).
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("Month %d", m)
	}
	return monthNames[m-1]
}

type MonthlyMenu struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Title       string    `gorm:"size:150;not null" json:"title"`
	Month       int       `gorm:"not null;uniqueIndex:idx_monthly_menu_period" json:"month"`
	Year        int       `gorm:"not null;uniqueIndex:idx_monthly_menu_period" json:"year"`
	Description string    `gorm:"type:text" json:"description"`
	Cover       string    `gorm:"size:255" json:"cover"`
	Document    string    `gorm:"size:255" json:"document"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m MonthlyMenu) String() string {
	return fmt.Sprintf("Menu %s %d", MonthName(m.Month), m.Year)
}
