package patient

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Patient is the identity and contact record. ID is zero until persisted.
type Patient struct {
	ID              int64      `gorm:"primaryKey" json:"id,omitempty"`
	FullName        string     `gorm:"not null" json:"full_name"`
	DocID           string     `gorm:"index" json:"doc_id"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	EmergencyPhone  string     `json:"emergency_phone,omitempty"`
	DateOfBirth     string     `gorm:"size:10" json:"date_of_birth,omitempty"`
	Anamnesis       string     `json:"anamnesis,omitempty"`
	AllergyDetail   string     `json:"allergy_detail,omitempty"`
	Status          string     `gorm:"size:16;default:active;index" json:"status,omitempty"`
	DebtOpenedAt    *string    `gorm:"size:10" json:"debt_opened_at,omitempty"`
	DebtArchived    bool       `gorm:"not null;default:false" json:"debt_archived"`
	DebtArchivedAt  *time.Time `json:"debt_archived_at,omitempty"`
	LastContactAt   *time.Time `json:"last_contact_at,omitempty"`
	LastContactType *string    `gorm:"size:16" json:"last_contact_type,omitempty"`
	SearchKey       string     `gorm:"index" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }

// Addressable reports whether both full name and document id are present.
func (p Patient) Addressable() bool {
	return strings.TrimSpace(p.FullName) != "" && strings.TrimSpace(p.DocID) != ""
}

// HasAllergy reports whether an allergy detail has been recorded.
func (p Patient) HasAllergy() bool {
	return strings.TrimSpace(p.AllergyDetail) != ""
}

// Profile is the user-editable subset of a patient used for change detection.
type Profile struct {
	FullName       string
	DocID          string
	Phone          string
	Email          string
	EmergencyPhone string
	DateOfBirth    string
	Anamnesis      string
	AllergyDetail  string
}

func (p Patient) Profile() Profile {
	return Profile{
		FullName:       p.FullName,
		DocID:          p.DocID,
		Phone:          p.Phone,
		Email:          p.Email,
		EmergencyPhone: p.EmergencyPhone,
		DateOfBirth:    p.DateOfBirth,
		Anamnesis:      p.Anamnesis,
		AllergyDetail:  p.AllergyDetail,
	}
}

// ListEntry is a patient row in the patients table view.
type ListEntry struct {
	ID             int64   `json:"id"`
	FullName       string  `json:"full_name"`
	DocID          string  `json:"doc_id"`
	Phone          string  `json:"phone,omitempty"`
	Email          string  `json:"email,omitempty"`
	LastVisit      *string `json:"last_visit,omitempty"`
	PendingBalance float64 `json:"pending_balance"`
	Status         string  `json:"status"`
}

// Contact channels accepted by MarkContacted.
var ContactTypes = map[string]bool{
	"whatsapp":  true,
	"call":      true,
	"email":     true,
	"in_person": true,
}

// Fold lowercases s and strips combining marks so "Pérez" matches "perez".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// SearchKeyFor is the value stored in the search_key column.
func SearchKeyFor(p Patient) string {
	return Fold(p.FullName + " " + p.DocID)
}
