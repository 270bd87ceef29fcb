package documents

import "time"

// ConsentTemplate is the boilerplate text a consent is started from.
type ConsentTemplate struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;not null" json:"name"`
	ProcedureType string    `json:"procedure_type"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Active        bool      `gorm:"not null" json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ConsentTemplate) TableName() string { return "consent_templates" }

// InformedConsent is a signed consent. The text is frozen at signing time so
// later template edits do not alter it.
type InformedConsent struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	PatientID        int64     `gorm:"index;not null" json:"patient_id"`
	VisitID          *int64    `gorm:"index" json:"visit_id,omitempty"`
	ProcedureType    string    `json:"procedure_type"`
	ProcedureName    string    `json:"procedure_name,omitempty"`
	ConsentTemplate  string    `json:"consent_template"`
	ConsentText      string    `gorm:"type:text" json:"consent_text"`
	SignatureData    string    `gorm:"type:text;not null" json:"signature_data"`
	SignedBy         string    `gorm:"not null" json:"signed_by"`
	SignedAt         time.Time `json:"signed_at"`
	WitnessName      string    `json:"witness_name,omitempty"`
	WitnessSignature string    `gorm:"type:text" json:"witness_signature,omitempty"`
	DoctorName       string    `json:"doctor_name,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (InformedConsent) TableName() string { return "informed_consents" }

// Text template kinds, one per editable field of the record form.
const (
	KindWhatsApp       = "whatsapp_message"
	KindDiagnosis      = "diagnosis"
	KindClinicalNotes  = "clinical_notes"
	KindReasonDetail   = "reason_detail"
	KindProcedureNotes = "procedure_notes"
	KindPaymentNotes   = "payment_notes"
)

var validKinds = map[string]bool{
	KindWhatsApp: true, KindDiagnosis: true, KindClinicalNotes: true,
	KindReasonDetail: true, KindProcedureNotes: true, KindPaymentNotes: true,
}

// TextTemplate is a reusable snippet with {placeholder} variables.
type TextTemplate struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:32;index;not null" json:"kind"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TextTemplate) TableName() string { return "text_templates" }
