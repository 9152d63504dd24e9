package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pageza/cantine/backend/internal/models"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type StudentInput struct {
	Matricule   string `form:"matricule" json:"matricule" validate:"required,max=30"`
	LastName    string `form:"last_name" json:"last_name" validate:"required,max=100"`
	FirstName   string `form:"first_name" json:"first_name" validate:"required,max=100"`
	ClassID     uint   `form:"class_id" json:"class_id" validate:"required"`
	EnrolledOn  string `form:"enrolled_on" json:"enrolled_on" validate:"omitempty,datetime=2006-01-02"`
	Active      bool   `form:"active" json:"active"`
	ParentPhone string `form:"parent_phone" json:"parent_phone" validate:"max=50"`
	ParentEmail string `form:"parent_email" json:"parent_email" validate:"omitempty,email,max=254"`
	Notes       string `form:"notes" json:"notes"`
}

// StudentInputFrom returns the editable fields of st, used to prefill forms
// and as the base of partial updates.
func StudentInputFrom(st *models.Student) StudentInput {
	in := StudentInput{
		Matricule:   st.Matricule,
		LastName:    st.LastName,
		FirstName:   st.FirstName,
		ClassID:     st.ClassID,
		Active:      st.Active,
		ParentPhone: st.ParentPhone,
		ParentEmail: st.ParentEmail,
		Notes:       st.Notes,
	}
	if !st.EnrolledOn.IsZero() {
		in.EnrolledOn = st.EnrolledOn.Format(dateLayout)
	}
	return in
}

// StudentFilter holds the optional listing predicates. They are applied in
// a fixed order: search, class, status.
type StudentFilter struct {
	Search    string
	ClassID   uint
	ClassName string
	Active    *bool
}

func (f StudentFilter) predicates() []func(*gorm.DB) *gorm.DB {
	var preds []func(*gorm.DB) *gorm.DB
	if search := strings.TrimSpace(f.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		preds = append(preds, func(db *gorm.DB) *gorm.DB {
			return db.Where("LOWER(students.last_name) LIKE ? OR LOWER(students.first_name) LIKE ? OR LOWER(students.matricule) LIKE ?", like, like, like)
		})
	}
	if f.ClassID != 0 {
		preds = append(preds, func(db *gorm.DB) *gorm.DB {
			return db.Where("students.class_id = ?", f.ClassID)
		})
	} else if f.ClassName != "" {
		preds = append(preds, func(db *gorm.DB) *gorm.DB {
			return db.Where("students.class_id IN (SELECT id FROM classes WHERE name = ?)", f.ClassName)
		})
	}
	if f.Active != nil {
		active := *f.Active
		preds = append(preds, func(db *gorm.DB) *gorm.DB {
			return db.Where("students.active = ?", active)
		})
	}
	return preds
}

// ClassGroup is the set of students of one class.
type ClassGroup struct {
	ClassName string
	Students  []models.Student
}

type StudentService struct {
	db    *gorm.DB
	media *MediaService
	now   Clock
}

func NewStudentService(db *gorm.DB, media *MediaService, clock Clock) *StudentService {
	return &StudentService{db: db, media: media, now: defaultClock(clock)}
}

func (s *StudentService) today() time.Time {
	return models.DateOf(s.now())
}

func (s *StudentService) filtered(ctx context.Context, filter StudentFilter) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Student{}).Scopes(filter.predicates()...)
}

// List returns one page of students ordered by last name, first name.
func (s *StudentService) List(ctx context.Context, filter StudentFilter, page Page) ([]models.Student, PageInfo, error) {
	page = page.normalize()
	var total int64
	if err := s.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var students []models.Student
	err := s.filtered(ctx, filter).
		Preload("Class").
		Order("students.last_name, students.first_name").
		Offset(page.offset()).Limit(page.Size).
		Find(&students).Error
	if err != nil {
		return nil, PageInfo{}, err
	}
	return students, PageInfo{Number: page.Number, Size: page.Size, Total: total}, nil
}

// All returns every student matching filter without paging.
func (s *StudentService) All(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	var students []models.Student
	err := s.filtered(ctx, filter).
		Preload("Class").
		Order("students.last_name, students.first_name").
		Find(&students).Error
	return students, err
}

func (s *StudentService) Get(ctx context.Context, id uint) (*models.Student, error) {
	var st models.Student
	err := s.db.WithContext(ctx).Preload("Class").Preload("Subscription").First(&st, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *StudentService) normalize(in *StudentInput) {
	in.Matricule = strings.TrimSpace(in.Matricule)
	in.LastName = strings.TrimSpace(in.LastName)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.ParentEmail = strings.TrimSpace(in.ParentEmail)
}

func (s *StudentService) apply(st *models.Student, in StudentInput) {
	st.Matricule = in.Matricule
	st.LastName = in.LastName
	st.FirstName = in.FirstName
	st.ClassID = in.ClassID
	st.Active = in.Active
	st.ParentPhone = in.ParentPhone
	st.ParentEmail = in.ParentEmail
	st.Notes = in.Notes
	if d, err := time.Parse(dateLayout, in.EnrolledOn); err == nil {
		st.EnrolledOn = d
	} else if st.EnrolledOn.IsZero() {
		st.EnrolledOn = s.today()
	}
}

func (s *StudentService) checkClass(tx *gorm.DB, classID uint) error {
	var n int64
	if err := tx.Model(&models.Class{}).Where("id = ?", classID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return NewValidationError(errors.New("unknown class"), FieldError{Field: "class_id", Error: "Select a valid class."})
	}
	return nil
}

func (s *StudentService) storePhoto(ctx context.Context, st *models.Student, photo *Upload) (string, error) {
	if photo == nil {
		return "", nil
	}
	return s.media.StoreImage(ctx, fmt.Sprintf("students/%s/photos", st.Matricule), photo)
}

// Create adds a student and makes sure it has a subscription.
func (s *StudentService) Create(ctx context.Context, in StudentInput, photo *Upload) (*models.Student, error) {
	s.normalize(&in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	st := &models.Student{}
	s.apply(st, in)

	key, err := s.storePhoto(ctx, st, photo)
	if err != nil {
		return nil, err
	}
	st.Photo = key

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkClass(tx, st.ClassID); err != nil {
			return err
		}
		if err := tx.Omit("Class", "Subscription").Create(st).Error; err != nil {
			if isDuplicate(err) {
				return fieldConflict("matricule", "A student with this matricule already exists.")
			}
			return err
		}
		sub, _, err := getOrCreateSubscription(tx, st.ID, s.today())
		if err != nil {
			return err
		}
		st.Subscription = sub
		return nil
	})
	if err != nil {
		_ = s.media.Remove(ctx, key)
		return nil, err
	}
	return s.Get(ctx, st.ID)
}

// Update replaces the editable fields of a student.
func (s *StudentService) Update(ctx context.Context, id uint, in StudentInput, photo *Upload) (*models.Student, error) {
	s.normalize(&in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.apply(st, in)

	oldPhoto := ""
	key, err := s.storePhoto(ctx, st, photo)
	if err != nil {
		return nil, err
	}
	if key != "" {
		oldPhoto, st.Photo = st.Photo, key
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkClass(tx, st.ClassID); err != nil {
			return err
		}
		if err := tx.Omit("Class", "Subscription").Save(st).Error; err != nil {
			if isDuplicate(err) {
				return fieldConflict("matricule", "A student with this matricule already exists.")
			}
			return err
		}
		return nil
	})
	if err != nil {
		if key != "" {
			_ = s.media.Remove(ctx, key)
		}
		return nil, err
	}
	if oldPhoto != "" {
		_ = s.media.Remove(ctx, oldPhoto)
	}
	return s.Get(ctx, id)
}

// Delete removes a student with its subscription and attendance records.
func (s *StudentService) Delete(ctx context.Context, id uint) error {
	st, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
			return err
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.Subscription{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Student{}, id).Error
	})
	if err != nil {
		return err
	}
	_ = s.media.Remove(ctx, st.Photo)
	return nil
}

// PhotoURL resolves the stored photo of st.
func (s *StudentService) PhotoURL(ctx context.Context, st *models.Student) string {
	return s.media.URL(ctx, st.Photo)
}

// QRCode returns a PNG QR code encoding the matricule of st.
func QRCode(st *models.Student, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(st.Matricule, qrcode.Medium, size)
}

// ActiveByClass groups active students by class name, classes and
// students sorted by name.
func (s *StudentService) ActiveByClass(ctx context.Context) ([]ClassGroup, error) {
	var students []models.Student
	err := s.db.WithContext(ctx).
		Joins("JOIN classes ON classes.id = students.class_id").
		Preload("Class").
		Where("students.active = ?", true).
		Order("classes.name, students.last_name").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	var groups []ClassGroup
	for _, st := range students {
		name := st.ClassName()
		if len(groups) == 0 || groups[len(groups)-1].ClassName != name {
			groups = append(groups, ClassGroup{ClassName: name})
		}
		g := &groups[len(groups)-1]
		g.Students = append(g.Students, st)
	}
	return groups, nil
}

// EnrolledForMonth lists active students enrolled on or before the last
// day of month/year, ordered by class then last name.
func (s *StudentService) EnrolledForMonth(ctx context.Context, year, month int) ([]models.Student, error) {
	_, last := models.MonthBounds(year, month)
	var students []models.Student
	err := s.db.WithContext(ctx).
		Joins("JOIN classes ON classes.id = students.class_id").
		Preload("Class").
		Where("students.active = ? AND students.enrolled_on <= ?", true, last).
		Order("classes.name, students.last_name").
		Find(&students).Error
	return students, err
}

// Latest returns the n most recently enrolled students.
func (s *StudentService) Latest(ctx context.Context, n int) ([]models.Student, error) {
	var students []models.Student
	err := s.db.WithContext(ctx).
		Preload("Class").
		Order("enrolled_on DESC, id DESC").
		Limit(n).
		Find(&students).Error
	return students, err
}

// StudentDetail is what the student page shows besides the student itself.
type StudentDetail struct {
	Student        *models.Student
	MealsThisMonth int64
	RecentMeals    []models.Attendance
	Registrations  []MonthRegistration
}

// Detail loads a student with this month's meal count, its ten most recent
// meals and the registration status of the last six months.
func (s *StudentService) Detail(ctx context.Context, id uint) (*StudentDetail, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	today := s.today()
	first, _ := models.MonthBounds(today.Year(), int(today.Month()))
	db := s.db.WithContext(ctx)

	detail := &StudentDetail{Student: st}
	err = db.Model(&models.Attendance{}).
		Where("student_id = ? AND present = ? AND date >= ?", id, true, first).
		Count(&detail.MealsThisMonth).Error
	if err != nil {
		return nil, err
	}
	err = db.Preload("Menu").
		Where("student_id = ? AND present = ?", id, true).
		Order("date DESC, check_in_time DESC").
		Limit(10).
		Find(&detail.RecentMeals).Error
	if err != nil {
		return nil, err
	}
	detail.Registrations = RegistrationByMonth(st, st.Subscription, today)
	return detail, nil
}

// getOrCreateSubscription returns the subscription of studentID, creating
// an active one starting on start when missing.
func getOrCreateSubscription(tx *gorm.DB, studentID uint, start time.Time) (*models.Subscription, bool, error) {
	var sub models.Subscription
	err := tx.Where("student_id = ?", studentID).First(&sub).Error
	if err == nil {
		return &sub, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	sub = models.Subscription{
		StudentID: studentID,
		Status:    models.SubscriptionActive,
		StartDate: start,
	}
	created := true
	err = createOrReread(tx,
		func(sp *gorm.DB) error { return sp.Create(&sub).Error },
		func(tx *gorm.DB) error {
			created = false
			sub = models.Subscription{}
			return tx.Where("student_id = ?", studentID).First(&sub).Error
		})
	if err != nil {
		return nil, false, err
	}
	return &sub, created, nil
}
