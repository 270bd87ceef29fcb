package documents

import (
	"strconv"
	"strings"
	"time"
)

// RenderContext carries the values a text template may reference.
type RenderContext struct {
	PatientName string    `json:"patient_name"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	DocID       string    `json:"doc_id"`
	Phone       string    `json:"phone"`
	Doctor      string    `json:"doctor"`
	Tooth       string    `json:"tooth,omitempty"`
	Procedure   string    `json:"procedure,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Now         time.Time `json:"-"`
}

// Render substitutes {nombre}, {edad}, {cedula}, {telefono}, {fecha} (DD/MM/YYYY),
// {hora} (HH:MM), {doctor}, {pieza}, {procedimiento} and {monto}. Unknown
// placeholders are left as they are so the doctor can fill them by hand.
func Render(body string, rc RenderContext) string {
	now := rc.Now
	if now.IsZero() {
		now = time.Now()
	}
	age := ""
	if a, ok := Age(rc.DateOfBirth, now); ok {
		age = strconv.Itoa(a)
	}
	return strings.NewReplacer(
		"{nombre}", rc.PatientName,
		"{edad}", age,
		"{cedula}", rc.DocID,
		"{telefono}", rc.Phone,
		"{fecha}", now.Format("02/01/2006"),
		"{hora}", now.Format("15:04"),
		"{doctor}", rc.Doctor,
		"{pieza}", rc.Tooth,
		"{procedimiento}", rc.Procedure,
		"{monto}", rc.Amount,
	).Replace(body)
}

// Age returns the completed years between a YYYY-MM-DD birth date and now.
func Age(dateOfBirth string, now time.Time) (int, bool) {
	dob, err := time.Parse("2006-01-02", strings.TrimSpace(dateOfBirth))
	if err != nil {
		return 0, false
	}
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
