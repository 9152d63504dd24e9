package service_test

import (
	"context"
	"testing"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpenseAmountRules(t *testing.T) {
	svc := service.NewExpenseService(testhelpers.SetupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		amount  string
		wantErr string
	}{
		{"12,50", ""},
		{"abc", "Enter a number."},
		{"0", "The amount must be greater than zero."},
		{"-4", "The amount must be greater than zero."},
		{"1.005", "Enter at most 8 digits with 2 decimal places."},
		{"100000000", "Enter at most 8 digits with 2 decimal places."},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			e, err := svc.Create(ctx, service.ExpenseInput{
				Label:    "Riz",
				Category: models.CategoryIngredients,
				Amount:   tt.amount,
				Date:     "2024-03-02",
			})
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "12.50", e.Amount.StringFixed(2))
				return
			}
			assert.Equal(t, tt.wantErr, service.FieldErrors(err)["amount"])
		})
	}

	_, err := svc.Create(ctx, service.ExpenseInput{Label: "x", Category: "food", Amount: "1", Date: "2024-03-02"})
	assert.Contains(t, service.FieldErrors(err), "category")
}

func TestExpenseListMonth(t *testing.T) {
	svc := service.NewExpenseService(testhelpers.SetupTestDB(t))
	ctx := context.Background()

	for _, in := range []service.ExpenseInput{
		{Label: "Riz", Category: models.CategoryIngredients, Amount: "100", Date: "2024-03-02"},
		{Label: "Bouteille", Category: models.CategoryGas, Amount: "50", Date: "2024-03-09"},
		{Label: "Huile", Category: models.CategoryIngredients, Amount: "70", Date: "2024-04-01"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	month, err := svc.ListMonth(ctx, 2024, 3)
	require.NoError(t, err)
	require.Len(t, month.Expenses, 2)
	assert.Equal(t, "Bouteille", month.Expenses[0].Label)
	assert.Equal(t, "150.00", month.Total.StringFixed(2))

	in := service.ExpenseInputFrom(&month.Expenses[0])
	in.Date = "2024-04-03"
	_, err = svc.Update(ctx, month.Expenses[0].ID, in)
	require.NoError(t, err)

	april, err := svc.ListMonth(ctx, 2024, 4)
	require.NoError(t, err)
	assert.Len(t, april.Expenses, 2)
	assert.Equal(t, "120.00", april.Total.StringFixed(2))

	require.NoError(t, svc.Delete(ctx, april.Expenses[0].ID))
	assert.ErrorIs(t, svc.Delete(ctx, april.Expenses[0].ID), service.ErrNotFound)
}
