package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errInvalidAmount = errors.New("invalid amount")

type ExpenseInput struct {
	Label    string                 `form:"label" json:"label" validate:"required,max=120"`
	Category models.ExpenseCategory `form:"category" json:"category" validate:"required,oneof=ingredients gas labor logistics other"`
	Amount   string                 `form:"amount" json:"amount" validate:"required"`
	Date     string                 `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Notes    string                 `form:"notes" json:"notes"`
}

func ExpenseInputFrom(e *models.Expense) ExpenseInput {
	return ExpenseInput{
		Label:    e.Label,
		Category: e.Category,
		Amount:   e.Amount.StringFixed(2),
		Date:     e.Date.Format(dateLayout),
		Notes:    e.Notes,
	}
}

// parse validates in and returns the amount and date it carries.
func (in ExpenseInput) parse() (decimal.Decimal, time.Time, error) {
	if err := validateStruct(in); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(in.Amount), ",", "."))
	if err != nil {
		return decimal.Zero, time.Time{}, NewValidationError(err, FieldError{Field: "amount", Error: "Enter a number."})
	}
	if !amount.IsPositive() {
		return decimal.Zero, time.Time{}, NewValidationError(errInvalidAmount, FieldError{Field: "amount", Error: "The amount must be greater than zero."})
	}
	if amount.Exponent() < -2 || amount.Abs().GreaterThanOrEqual(decimal.New(1, 8)) {
		return decimal.Zero, time.Time{}, NewValidationError(errInvalidAmount, FieldError{Field: "amount", Error: "Enter at most 8 digits with 2 decimal places."})
	}
	date, _ := time.Parse(dateLayout, in.Date)
	return amount, date, nil
}

type ExpenseService struct {
	db *gorm.DB
}

func NewExpenseService(db *gorm.DB) *ExpenseService {
	return &ExpenseService{db: db}
}

// ExpenseMonth is the listing of one month with its total.
type ExpenseMonth struct {
	Year     int
	Month    int
	Expenses []models.Expense
	Total    decimal.Decimal
}

// ListMonth returns the expenses of month/year ordered by date desc then label.
func (s *ExpenseService) ListMonth(ctx context.Context, year, month int) (*ExpenseMonth, error) {
	first, last := models.MonthBounds(year, month)
	var expenses []models.Expense
	err := s.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", first, last).
		Order("date DESC, label").
		Find(&expenses).Error
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return &ExpenseMonth{Year: year, Month: month, Expenses: expenses, Total: total}, nil
}

func (s *ExpenseService) Get(ctx context.Context, id uint) (*models.Expense, error) {
	var e models.Expense
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *ExpenseService) Create(ctx context.Context, in ExpenseInput) (*models.Expense, error) {
	amount, date, err := in.parse()
	if err != nil {
		return nil, err
	}
	e := &models.Expense{
		Label:    strings.TrimSpace(in.Label),
		Category: in.Category,
		Amount:   amount,
		Date:     date,
		Notes:    in.Notes,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ExpenseService) Update(ctx context.Context, id uint, in ExpenseInput) (*models.Expense, error) {
	amount, date, err := in.parse()
	if err != nil {
		return nil, err
	}
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Label = strings.TrimSpace(in.Label)
	e.Category = in.Category
	e.Amount = amount
	e.Date = date
	e.Notes = in.Notes
	if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Expense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
