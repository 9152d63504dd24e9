package service

import (
	"time"

	"github.com/pageza/cantine/backend/internal/models"
)

const registrationMonths = 6

// MonthRegistration tells whether a student was enrolled for one month.
type MonthRegistration struct {
	Month    int
	Year     int
	Enrolled bool
}

// Label formats the month as "01/2006".
func (r MonthRegistration) Label() string {
	return time.Date(r.Year, time.Month(r.Month), 1, 0, 0, 0, 0, time.UTC).Format("01/2006")
}

// RegistrationByMonth reports enrollment for the six months ending with the
// month of today, oldest first. A month counts when the student is active
// and the subscription started on or before its last day and did not end
// before that last day.
func RegistrationByMonth(st *models.Student, sub *models.Subscription, today time.Time) []MonthRegistration {
	out := make([]MonthRegistration, registrationMonths)
	year, month := today.Year(), int(today.Month())
	for i := 0; i < registrationMonths; i++ {
		m := time.Date(year, time.Month(month-i), 1, 0, 0, 0, 0, time.UTC)
		_, last := models.MonthBounds(m.Year(), int(m.Month()))

		enrolled := st.Active
		if sub != nil {
			if !sub.StartDate.IsZero() && models.DateOf(sub.StartDate).After(last) {
				enrolled = false
			}
			if sub.EndDate != nil && models.DateOf(*sub.EndDate).Before(last) {
				enrolled = false
			}
		}
		out[registrationMonths-1-i] = MonthRegistration{
			Month:    int(m.Month()),
			Year:     m.Year(),
			Enrolled: enrolled,
		}
	}
	return out
}
