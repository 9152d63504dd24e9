package service_test

import (
	"context"
	"testing"

	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassCRUD(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	svc := service.NewClassService(db)
	ctx := context.Background()

	b, err := svc.Create(ctx, service.ClassInput{Name: " 6B ", Level: "Sixth"})
	require.NoError(t, err)
	assert.Equal(t, "6B", b.Name)
	a, err := svc.Create(ctx, service.ClassInput{Name: "6A"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, service.ClassInput{Name: "6A"})
	assert.Equal(t, "A class with this name already exists.", service.FieldErrors(err)["name"])

	_, err = svc.Create(ctx, service.ClassInput{})
	assert.Equal(t, "This field is required.", service.FieldErrors(err)["name"])

	testhelpers.CreateTestStudent(t, db, a, "M1", "Jean", "Dupont")
	testhelpers.CreateTestStudent(t, db, a, "M2", "Awa", "Camara")

	rows, info, err := svc.List(ctx, service.Page{Number: 1, Size: 20})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.EqualValues(t, 2, info.Total)
	assert.Equal(t, "6A", rows[0].Name)
	assert.EqualValues(t, 2, rows[0].StudentCount)
	assert.EqualValues(t, 0, rows[1].StudentCount)

	updated, err := svc.Update(ctx, b.ID, service.ClassInput{Name: "6C", Supervisor: "Mme Diallo"})
	require.NoError(t, err)
	assert.Equal(t, "6C", updated.Name)
	_, err = svc.Update(ctx, b.ID, service.ClassInput{Name: "6A"})
	assert.Contains(t, service.FieldErrors(err), "name")

	assert.ErrorIs(t, svc.Delete(ctx, a.ID), service.ErrClassInUse)
	require.NoError(t, svc.Delete(ctx, b.ID))
	assert.ErrorIs(t, svc.Delete(ctx, b.ID), service.ErrNotFound)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
