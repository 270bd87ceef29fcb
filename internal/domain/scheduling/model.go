package scheduling

import "time"

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

// DefaultDuration applies when an appointment arrives without an end time.
const DefaultDuration = 30 * time.Minute

// ReminderWindow is how far ahead pending reminders look.
const ReminderWindow = 24 * time.Hour

// Appointment is one booked slot. Times are stored in UTC.
type Appointment struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	PatientID      int64      `gorm:"index;not null" json:"patient_id"`
	StartsAt       time.Time  `gorm:"index;not null" json:"starts_at"`
	EndsAt         time.Time  `gorm:"not null" json:"ends_at"`
	Procedure      string     `json:"procedure"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `gorm:"size:16;index;not null" json:"status"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Appointment) TableName() string { return "appointments" }

// Open reports whether the appointment still occupies its slot.
func (a *Appointment) Open() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}
