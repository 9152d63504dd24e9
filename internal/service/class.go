package service

import (
	"context"
	"strings"

	"github.com/pageza/cantine/backend/internal/models"
	"gorm.io/gorm"
)

type ClassInput struct {
	Name       string `form:"name" json:"name" validate:"required,max=50"`
	Level      string `form:"level" json:"level" validate:"max=50"`
	Supervisor string `form:"supervisor" json:"supervisor" validate:"max=100"`
}

// ClassRow is a class with its student count.
type ClassRow struct {
	ID           uint
	Name         string
	Level        string
	Supervisor   string
	StudentCount int64
}

type ClassService struct {
	db *gorm.DB
}

func NewClassService(db *gorm.DB) *ClassService {
	return &ClassService{db: db}
}

// List returns one page of classes ordered by name.
func (s *ClassService) List(ctx context.Context, page Page) ([]ClassRow, PageInfo, error) {
	page = page.normalize()
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Class{}).Count(&total).Error; err != nil {
		return nil, PageInfo{}, err
	}
	var rows []ClassRow
	err := db.Model(&models.Class{}).
		Select("classes.*, (SELECT COUNT(*) FROM students WHERE students.class_id = classes.id) AS student_count").
		Order("classes.name").
		Offset(page.offset()).Limit(page.Size).
		Scan(&rows).Error
	if err != nil {
		return nil, PageInfo{}, err
	}
	return rows, PageInfo{Number: page.Number, Size: page.Size, Total: total}, nil
}

// All returns every class ordered by name, for select boxes.
func (s *ClassService) All(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := s.db.WithContext(ctx).Order("name").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (s *ClassService) Get(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	if err := s.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &class, nil
}

func (s *ClassService) Create(ctx context.Context, in ClassInput) (*models.Class, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	class := models.Class{Name: in.Name, Level: in.Level, Supervisor: in.Supervisor}
	if err := s.db.WithContext(ctx).Create(&class).Error; err != nil {
		if isDuplicate(err) {
			return nil, fieldConflict("name", "A class with this name already exists.")
		}
		return nil, err
	}
	return &class, nil
}

func (s *ClassService) Update(ctx context.Context, id uint, in ClassInput) (*models.Class, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	class.Name, class.Level, class.Supervisor = in.Name, in.Level, in.Supervisor
	if err := s.db.WithContext(ctx).Save(class).Error; err != nil {
		if isDuplicate(err) {
			return nil, fieldConflict("name", "A class with this name already exists.")
		}
		return nil, err
	}
	return class, nil
}

// Delete removes a class. It fails with ErrClassInUse while students reference it.
func (s *ClassService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var class models.Class
		if err := tx.First(&class, id).Error; err != nil {
			return notFound(err)
		}
		var students int64
		if err := tx.Model(&models.Student{}).Where("class_id = ?", id).Count(&students).Error; err != nil {
			return err
		}
		if students > 0 {
			return ErrClassInUse
		}
		return tx.Delete(&class).Error
	})
}

// getOrCreateClass finds a class by name, creating it when missing.
func getOrCreateClass(tx *gorm.DB, name string) (*models.Class, error) {
	class := models.Class{}
	err := createOrReread(tx,
		func(sp *gorm.DB) error {
			return sp.Where(models.Class{Name: name}).FirstOrCreate(&class).Error
		},
		func(tx *gorm.DB) error {
			class = models.Class{}
			return tx.Where("name = ?", name).First(&class).Error
		})
	if err != nil {
		return nil, err
	}
	return &class, nil
}
