package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pageza/cantine/backend/internal/models"
	"gorm.io/gorm"
)

const maxImportBytes = 5 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ImportResult counts what a CSV import did.
type ImportResult struct {
	Created int
	Updated int
	Skipped int
}

func (r ImportResult) String() string {
	return fmt.Sprintf("Import finished: %d student(s) created, %d updated.", r.Created, r.Updated)
}

func isHeaderRow(row []string) bool {
	joined := strings.ToLower(strings.Join(row, ""))
	return strings.Contains(joined, "matricule") ||
		strings.Contains(joined, "prénom") ||
		strings.Contains(joined, "first name")
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// Import reads students from CSV rows of matricule, first name, last name,
// class, parent phone and parent email. Students are matched by matricule;
// classes and subscriptions are created when missing.
func (s *StudentService) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult
	data, err := readAll(r, maxImportBytes)
	if err != nil {
		return result, NewValidationError(err, FieldError{Field: "file", Error: err.Error()})
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return result, NewValidationError(err, FieldError{Field: "file", Error: "The file is not a valid CSV document."})
	}

	today := s.today()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, row := range rows {
			if blankRow(row) {
				continue
			}
			if i == 0 && isHeaderRow(row) {
				continue
			}

			matricule := cell(row, 0)
			if matricule == "" {
				matricule = fmt.Sprintf("AUTO-%d-%d", s.now().UnixNano(), i+1)
			}
			firstName, lastName := cell(row, 1), cell(row, 2)
			className := cell(row, 3)
			if firstName == "" || lastName == "" || className == "" {
				result.Skipped++
				continue
			}

			class, err := getOrCreateClass(tx, className)
			if err != nil {
				return err
			}

			var st models.Student
			err = tx.Where("matricule = ?", matricule).First(&st).Error
			created := errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !created {
				return err
			}
			st.Matricule = matricule
			st.FirstName = firstName
			st.LastName = lastName
			st.ClassID = class.ID
			st.ParentPhone = cell(row, 4)
			st.ParentEmail = cell(row, 5)
			if created {
				st.EnrolledOn = today
				st.Active = true
			}
			if err := tx.Save(&st).Error; err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			if _, _, err := getOrCreateSubscription(tx, st.ID, today); err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// Export writes every student as CSV, ordered by last name, first name.
func (s *StudentService) Export(ctx context.Context, w io.Writer) error {
	students, err := s.All(ctx, StudentFilter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Matricule", "First name", "Last name", "Class", "Parent phone", "Parent email"}); err != nil {
		return err
	}
	for _, st := range students {
		row := []string{st.Matricule, st.FirstName, st.LastName, st.ClassName(), st.ParentPhone, st.ParentEmail}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
