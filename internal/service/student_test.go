package service_test

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/pageza/cantine/backend/internal/mocks"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/service"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var march15 = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func setupStudentTest(t *testing.T) (*gorm.DB, *service.StudentService, *mocks.MockStorage) {
	db := testhelpers.SetupTestDB(t)
	storage := new(mocks.MockStorage)
	svc := service.NewStudentService(db, service.NewMediaService(storage), testhelpers.FixedClock(march15))
	return db, svc, storage
}

func TestStudentCreateMakesSubscription(t *testing.T) {
	db, svc, _ := setupStudentTest(t)
	ctx := context.Background()
	class := testhelpers.CreateTestClass(t, db, "6A")

	st, err := svc.Create(ctx, service.StudentInput{
		Matricule: " M1 ",
		FirstName: "Jean",
		LastName:  "Dupont",
		ClassID:   class.ID,
		Active:    true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "M1", st.Matricule)
	assert.Equal(t, testhelpers.Date(2024, time.March, 15), st.EnrolledOn)
	require.NotNil(t, st.Subscription)
	assert.Equal(t, models.SubscriptionActive, st.Subscription.Status)
	assert.Equal(t, testhelpers.Date(2024, time.March, 15), st.Subscription.StartDate)

	_, err = svc.Create(ctx, service.StudentInput{Matricule: "M1", FirstName: "A", LastName: "B", ClassID: class.ID}, nil)
	assert.Equal(t, "A student with this matricule already exists.", service.FieldErrors(err)["matricule"])

	_, err = svc.Create(ctx, service.StudentInput{Matricule: "M2", FirstName: "A", LastName: "B", ClassID: 999}, nil)
	assert.Equal(t, "Select a valid class.", service.FieldErrors(err)["class_id"])
	assert.NotErrorIs(t, err, service.ErrNotFound)

	var subs int64
	require.NoError(t, db.Model(&models.Subscription{}).Count(&subs).Error)
	assert.EqualValues(t, 1, subs)
}

func TestStudentUpdateReplacesPhoto(t *testing.T) {
	db, svc, storage := setupStudentTest(t)
	ctx := context.Background()
	class := testhelpers.CreateTestClass(t, db, "6A")
	other := testhelpers.CreateTestClass(t, db, "6B")

	storage.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "students/M1/photos/")
	}), mock.Anything, "image/png").Return(nil).Twice()

	st, err := svc.Create(ctx, service.StudentInput{Matricule: "M1", FirstName: "Jean", LastName: "Dupont", ClassID: class.ID, Active: true}, pngUpload(t, "photo"))
	require.NoError(t, err)
	first := st.Photo
	require.NotEmpty(t, first)

	storage.On("Delete", mock.Anything, first).Return(nil).Once()
	in := service.StudentInputFrom(st)
	in.ClassID = other.ID
	in.Active = false
	updated, err := svc.Update(ctx, st.ID, in, pngUpload(t, "photo"))
	require.NoError(t, err)
	assert.Equal(t, "6B", updated.ClassName())
	assert.False(t, updated.Active)
	assert.NotEqual(t, first, updated.Photo)
	storage.AssertExpectations(t)

	storage.On("URL", mock.Anything, updated.Photo).Return("/media/"+updated.Photo, nil)
	assert.Equal(t, "/media/"+updated.Photo, svc.PhotoURL(ctx, updated))
}

func TestStudentDeleteRemovesDependents(t *testing.T) {
	db, svc, _ := setupStudentTest(t)
	ctx := context.Background()
	class := testhelpers.CreateTestClass(t, db, "6A")
	st := testhelpers.CreateTestStudent(t, db, class, "M1", "Jean", "Dupont")
	testhelpers.CreateTestSubscription(t, db, st.ID, testhelpers.Date(2024, time.January, 1), "0")
	testhelpers.CreateTestAttendance(t, db, st.ID, testhelpers.Date(2024, time.March, 14), true)

	require.NoError(t, svc.Delete(ctx, st.ID))

	for _, m := range []interface{}{&models.Student{}, &models.Subscription{}, &models.Attendance{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T left behind", m)
	}
	assert.ErrorIs(t, svc.Delete(ctx, st.ID), service.ErrNotFound)
}

func TestStudentFilterPredicates(t *testing.T) {
	db, svc, _ := setupStudentTest(t)
	ctx := context.Background()
	a := testhelpers.CreateTestClass(t, db, "6A")
	b := testhelpers.CreateTestClass(t, db, "6B")
	testhelpers.CreateTestStudent(t, db, a, "M1", "Jean", "Dupont")
	testhelpers.CreateTestStudent(t, db, a, "M2", "Awa", "Camara")
	inactive := testhelpers.CreateTestStudent(t, db, b, "M3", "Moussa", "Dupuis")
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	active, no := true, false
	tests := []struct {
		name   string
		filter service.StudentFilter
		want   []string
	}{
		{"all ordered by last name", service.StudentFilter{}, []string{"M2", "M1", "M3"}},
		{"search is case-insensitive", service.StudentFilter{Search: "DUP"}, []string{"M1", "M3"}},
		{"search matches matricule", service.StudentFilter{Search: "m2"}, []string{"M2"}},
		{"class id", service.StudentFilter{ClassID: b.ID}, []string{"M3"}},
		{"class name", service.StudentFilter{ClassName: "6A"}, []string{"M2", "M1"}},
		{"active", service.StudentFilter{Active: &active}, []string{"M2", "M1"}},
		{"inactive", service.StudentFilter{Active: &no}, []string{"M3"}},
		{"combined", service.StudentFilter{Search: "dup", ClassName: "6A", Active: &active}, []string{"M1"}},
		{"unknown class name", service.StudentFilter{ClassName: "Terminale"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := svc.All(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, st := range students {
				got = append(got, st.Matricule)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	page, info, err := svc.List(ctx, service.StudentFilter{}, service.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.EqualValues(t, 3, info.Total)
	assert.Equal(t, 2, info.Pages())
	assert.False(t, info.HasNext())
}

func TestActiveByClassAndEnrolledForMonth(t *testing.T) {
	db, svc, _ := setupStudentTest(t)
	ctx := context.Background()
	b := testhelpers.CreateTestClass(t, db, "6B")
	a := testhelpers.CreateTestClass(t, db, "6A")
	testhelpers.CreateTestStudent(t, db, b, "M1", "Jean", "Dupont")
	testhelpers.CreateTestStudent(t, db, a, "M2", "Awa", "Camara")
	late := testhelpers.CreateTestStudent(t, db, a, "M3", "Fanta", "Bah")
	require.NoError(t, db.Model(late).Update("enrolled_on", testhelpers.Date(2024, time.April, 2)).Error)

	groups, err := svc.ActiveByClass(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "6A", groups[0].ClassName)
	assert.Len(t, groups[0].Students, 2)
	assert.Equal(t, "Bah", groups[0].Students[0].LastName)
	assert.Equal(t, "6B", groups[1].ClassName)

	march, err := svc.EnrolledForMonth(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Len(t, march, 2)
	april, err := svc.EnrolledForMonth(ctx, 2024, 4)
	require.NoError(t, err)
	assert.Len(t, april, 3)
	assert.Equal(t, "6A", april[0].ClassName())
}

func TestStudentDetail(t *testing.T) {
	db, svc, _ := setupStudentTest(t)
	ctx := context.Background()
	class := testhelpers.CreateTestClass(t, db, "6A")
	st := testhelpers.CreateTestStudent(t, db, class, "M1", "Jean", "Dupont")
	testhelpers.CreateTestSubscription(t, db, st.ID, testhelpers.Date(2024, time.March, 15), "0")
	testhelpers.CreateTestAttendance(t, db, st.ID, testhelpers.Date(2024, time.February, 28), true)
	testhelpers.CreateTestAttendance(t, db, st.ID, testhelpers.Date(2024, time.March, 4), true)
	testhelpers.CreateTestAttendance(t, db, st.ID, testhelpers.Date(2024, time.March, 5), false)

	detail, err := svc.Detail(ctx, st.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, detail.MealsThisMonth)
	require.Len(t, detail.RecentMeals, 2)
	assert.Equal(t, testhelpers.Date(2024, time.March, 4), detail.RecentMeals[0].Date)
	require.Len(t, detail.Registrations, 6)
	assert.False(t, detail.Registrations[4].Enrolled)
	assert.True(t, detail.Registrations[5].Enrolled)
}

func TestQRCode(t *testing.T) {
	data, err := service.QRCode(&models.Student{Matricule: "M1"}, 128)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
