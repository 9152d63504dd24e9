package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseCategory string

const (
	CategoryIngredients ExpenseCategory = "ingredients"
	CategoryGas         ExpenseCategory = "gas"
	CategoryLabor       ExpenseCategory = "labor"
	CategoryLogistics   ExpenseCategory = "logistics"
	CategoryOther       ExpenseCategory = "other"
)

var categoryLabels = map[ExpenseCategory]string{
	CategoryIngredients: "Ingredients",
	CategoryGas:         "Gas / energy",
	CategoryLabor:       "Labor",
	CategoryLogistics:   "Logistics",
	CategoryOther:       "Other",
}

// ExpenseCategories lists the known categories in display order.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{CategoryIngredients, CategoryGas, CategoryLabor, CategoryLogistics, CategoryOther}
}

// Label returns the display label, or a title-cased version of an unknown code.
func (c ExpenseCategory) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	words := strings.Fields(strings.ReplaceAll(string(c), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

type Expense struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	Label    string          `gorm:"size:120;not null" json:"label"`
	Category ExpenseCategory `gorm:"size:20;not null;default:'ingredients'" json:"category"`
	Amount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Date     time.Time       `gorm:"type:date;not null;index" json:"date"`
	Notes    string          `gorm:"type:text" json:"notes"`
}
