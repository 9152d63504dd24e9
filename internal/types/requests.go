package types

import (
	"time"

	"github.com/pageza/cantine/backend/internal/models"
)

const dateLayout = "2006-01-02"

// LoginRequest is the body of POST /api/auth/login. Username also accepts
// an e-mail address.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

type StudentResponse struct {
	ID          uint   `json:"id"`
	Matricule   string `json:"matricule"`
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	FullName    string `json:"full_name"`
	ClassID     uint   `json:"class_id"`
	ClassName   string `json:"class_name"`
	EnrolledOn  string `json:"enrolled_on"`
	Active      bool   `json:"active"`
	ParentPhone string `json:"parent_phone"`
	ParentEmail string `json:"parent_email"`
	Notes       string `json:"notes"`
	Photo       string `json:"photo"`
}

// NewStudentResponse flattens st; photoURL is the resolved photo address.
func NewStudentResponse(st *models.Student, photoURL string) StudentResponse {
	return StudentResponse{
		ID:          st.ID,
		Matricule:   st.Matricule,
		LastName:    st.LastName,
		FirstName:   st.FirstName,
		FullName:    st.FullName(),
		ClassID:     st.ClassID,
		ClassName:   st.ClassName(),
		EnrolledOn:  st.EnrolledOn.Format(dateLayout),
		Active:      st.Active,
		ParentPhone: st.ParentPhone,
		ParentEmail: st.ParentEmail,
		Notes:       st.Notes,
		Photo:       photoURL,
	}
}

// AttendanceResponse exposes the record comment as notes.
type AttendanceResponse struct {
	ID          uint             `json:"id"`
	StudentID   uint             `json:"student_id"`
	Student     *StudentResponse `json:"student,omitempty"`
	Date        string           `json:"date"`
	Meal        models.MealType  `json:"meal"`
	Present     bool             `json:"present"`
	Notes       string           `json:"notes"`
	CheckInTime *string          `json:"check_in_time"`
	MenuID      *uint            `json:"menu_id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func NewAttendanceResponse(rec *models.Attendance) AttendanceResponse {
	out := AttendanceResponse{
		ID:        rec.ID,
		StudentID: rec.StudentID,
		Date:      rec.Date.Format(dateLayout),
		Meal:      rec.Meal,
		Present:   rec.Present,
		Notes:     rec.Comment,
		MenuID:    rec.MenuID,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.CheckInTime != nil {
		s := rec.CheckInTime.String()
		out.CheckInTime = &s
	}
	if rec.Student != nil {
		st := NewStudentResponse(rec.Student, "")
		out.Student = &st
	}
	return out
}

type DailyMenuResponse struct {
	ID         uint   `json:"id"`
	Date       string `json:"date"`
	Starter    string `json:"starter"`
	MainCourse string `json:"main_course"`
	SideDish   string `json:"side_dish"`
	Dessert    string `json:"dessert"`
	Drink      string `json:"drink"`
	Comments   string `json:"comments"`
	Photo      string `json:"photo"`
}

func NewDailyMenuResponse(m *models.DailyMenu, photoURL string) DailyMenuResponse {
	return DailyMenuResponse{
		ID:         m.ID,
		Date:       m.Date.Format(dateLayout),
		Starter:    m.Starter,
		MainCourse: m.MainCourse,
		SideDish:   m.SideDish,
		Dessert:    m.Dessert,
		Drink:      m.Drink,
		Comments:   m.Comments,
		Photo:      photoURL,
	}
}

type MonthlyMenuResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Description string    `json:"description"`
	Cover       string    `json:"cover"`
	Document    string    `json:"document"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewMonthlyMenuResponse(m *models.MonthlyMenu, coverURL, documentURL string) MonthlyMenuResponse {
	return MonthlyMenuResponse{
		ID:          m.ID,
		Title:       m.Title,
		Month:       m.Month,
		Year:        m.Year,
		Description: m.Description,
		Cover:       coverURL,
		Document:    documentURL,
		CreatedAt:   m.CreatedAt,
	}
}
