package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Student struct {
	ID           uint          `gorm:"primarykey" json:"id"`
	Matricule    string        `gorm:"size:30;not null;uniqueIndex" json:"matricule"`
	LastName     string        `gorm:"size:100;not null" json:"last_name"`
	FirstName    string        `gorm:"size:100;not null" json:"first_name"`
	ClassID      uint          `gorm:"not null;index" json:"class_id"`
	Class        *Class        `json:"class,omitempty"`
	EnrolledOn   time.Time     `gorm:"type:date;not null" json:"enrolled_on"`
	Active       bool          `gorm:"not null" json:"active"`
	ParentPhone  string        `gorm:"size:50" json:"parent_phone"`
	ParentEmail  string        `gorm:"size:254" json:"parent_email"`
	Notes        string        `gorm:"type:text" json:"notes"`
	Photo        string        `gorm:"size:255" json:"photo"`
	Subscription *Subscription `gorm:"constraint:OnDelete:CASCADE" json:"subscription,omitempty"`
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// ClassName returns the name of the preloaded class, or "" when not loaded.
func (s Student) ClassName() string {
	if s.Class == nil {
		return ""
	}
	return s.Class.Name
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionEnded     SubscriptionStatus = "ended"
)

func (s SubscriptionStatus) Label() string {
	switch s {
	case SubscriptionActive:
		return "Active"
	case SubscriptionPending:
		return "Pending"
	case SubscriptionSuspended:
		return "Suspended"
	case SubscriptionEnded:
		return "Ended"
	}
	return string(s)
}

// Subscription tracks billing for one student. A positive balance is
// available credit, a negative balance is an amount owed.
type Subscription struct {
	ID         uint               `gorm:"primarykey" json:"id"`
	StudentID  uint               `gorm:"not null;uniqueIndex" json:"student_id"`
	Status     SubscriptionStatus `gorm:"size:15;not null;default:'active'" json:"status"`
	StartDate  time.Time          `gorm:"type:date;not null" json:"start_date"`
	EndDate    *time.Time         `gorm:"type:date" json:"end_date,omitempty"`
	Balance    decimal.Decimal    `gorm:"type:numeric(9,2);not null;default:0" json:"balance"`
	MonthlyFee decimal.Decimal    `gorm:"type:numeric(9,2);not null;default:0" json:"monthly_fee"`
}
