package visit

import (
	"time"

	"github.com/greenapple/dental/internal/domain/patient"
)

// Session is one dated clinical/financial event for a patient.
type Session struct {
	ID                int64     `gorm:"primaryKey" json:"id,omitempty"`
	PatientID         int64     `gorm:"index;not null" json:"patient_id,omitempty"`
	Date              string    `gorm:"size:10;index" json:"date"`
	ReasonType        string    `json:"reason_type,omitempty"`
	ReasonDetail      string    `json:"reason_detail,omitempty"`
	DiagnosisText     string    `json:"diagnosis_text,omitempty"`
	AutoDxText        string    `json:"auto_dx_text,omitempty"`
	FullDxText        string    `json:"full_dx_text,omitempty"`
	ToothDxJSON       string    `gorm:"column:tooth_dx_json" json:"tooth_dx_json,omitempty"`
	ClinicalNotes     string    `json:"clinical_notes,omitempty"`
	Signer            string    `json:"signer,omitempty"`
	Budget            float64   `json:"budget"`
	Discount          float64   `json:"discount"`
	Payment           float64   `json:"payment"`
	Balance           float64   `json:"balance"`
	CumulativeBalance float64   `json:"cumulative_balance"`
	PaymentMethodID   *int64    `json:"payment_method_id,omitempty"`
	PaymentNotes      string    `json:"payment_notes,omitempty"`
	IsSaved           bool      `gorm:"index" json:"is_saved"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

// Item is one billable procedure line within a session.
type Item struct {
	ID                  int64     `gorm:"primaryKey" json:"id,omitempty"`
	SessionID           int64     `gorm:"index;not null" json:"session_id,omitempty"`
	Name                string    `json:"name"`
	UnitPrice           float64   `json:"unit_price"`
	Quantity            int64     `json:"quantity"`
	Subtotal            float64   `json:"subtotal"`
	IsActive            bool      `json:"is_active"`
	ToothNumber         *string   `json:"tooth_number,omitempty"`
	ProcedureNotes      string    `json:"procedure_notes,omitempty"`
	ProcedureTemplateID *int64    `gorm:"index" json:"procedure_template_id,omitempty"`
	SortOrder           int       `json:"sort_order"`
	CreatedAt           time.Time `json:"created_at"`
}

func (Item) TableName() string { return "session_items" }

// SetQuantity keeps subtotal consistent and ties the active flag to a
// positive quantity.
func (it *Item) SetQuantity(q int64) {
	if q < 0 {
		q = 0
	}
	it.Quantity = q
	it.Subtotal = it.UnitPrice * float64(q)
	it.IsActive = q > 0
}

func (it *Item) SetUnitPrice(p float64) {
	if p < 0 {
		p = 0
	}
	it.UnitPrice = p
	it.Subtotal = p * float64(it.Quantity)
}

// WithItems is a session together with its ordered procedure lines.
type WithItems struct {
	Session Session `json:"session"`
	Items   []Item  `json:"items"`
}

// ActiveTotal sums the subtotals of active items.
func (w WithItems) ActiveTotal() float64 {
	var total float64
	for _, it := range w.Items {
		if it.IsActive {
			total += it.Subtotal
		}
	}
	return total
}

// Clone returns a deep copy; item pointer fields are duplicated.
func (w WithItems) Clone() WithItems {
	out := WithItems{Session: w.Session}
	if w.Session.PaymentMethodID != nil {
		id := *w.Session.PaymentMethodID
		out.Session.PaymentMethodID = &id
	}
	if w.Items != nil {
		out.Items = make([]Item, len(w.Items))
		for i, it := range w.Items {
			out.Items[i] = it
			if it.ToothNumber != nil {
				tn := *it.ToothNumber
				out.Items[i].ToothNumber = &tn
			}
			if it.ProcedureTemplateID != nil {
				id := *it.ProcedureTemplateID
				out.Items[i].ProcedureTemplateID = &id
			}
		}
	}
	return out
}

// SaveRequest is the full-save payload: the patient, the current session
// shell and every session to persist.
type SaveRequest struct {
	Patient  patient.Patient `json:"patient"`
	Session  Session         `json:"session"`
	Sessions []WithItems     `json:"sessions"`
}

// SaveResult carries the persisted ids. SessionIDs is aligned with
// SaveRequest.Sessions; SessionID is the last one.
type SaveResult struct {
	PatientID  int64   `json:"patient_id"`
	SessionID  int64   `json:"session_id"`
	SessionIDs []int64 `json:"session_ids"`
}

// DiagnosticUpdate is the payload of an odontogram-only save.
type DiagnosticUpdate struct {
	PatientID   int64   `json:"patient_id"`
	ToothDxJSON *string `json:"tooth_dx_json,omitempty"`
	AutoDxText  *string `json:"auto_dx_text,omitempty"`
	FullDxText  *string `json:"full_dx_text,omitempty"`
}

// DebtSummary is one row of the pending payments report.
type DebtSummary struct {
	PatientID       int64      `json:"patient_id"`
	FullName        string     `json:"full_name"`
	Phone           string     `json:"phone,omitempty"`
	DocID           string     `json:"doc_id"`
	CurrentBalance  float64    `json:"current_balance"`
	DebtOpenedAt    *string    `json:"debt_opened_at,omitempty"`
	DebtArchived    bool       `json:"debt_archived"`
	LastContactAt   *time.Time `json:"last_contact_at,omitempty"`
	LastContactType *string    `json:"last_contact_type,omitempty"`
	DaysOverdue     int        `json:"days_overdue"`
	ContactStatus   string     `json:"contact_status"`
}

const (
	ContactNotContacted      = "not_contacted"
	ContactRecentlyContacted = "recently_contacted"
	ContactLongAgo           = "long_ago"
)

// Reason types written by the system itself.
const (
	ReasonControl    = "Control"
	ReasonOther      = "Otro"
	ReasonPayment    = "Abono a cuenta"
	DetailDxUpdate   = "Sistema: Odontograma"
	DetailAutoDraft  = "Actualizacion de diagnostico"
	DetailQuickAbono = "Abono rápido a cuenta"
)
