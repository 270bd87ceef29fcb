package catalog

import "time"

// ProcedureTemplate is a billable procedure offered when a new session is
// started. Inactive templates still referenced by session items are kept.
type ProcedureTemplate struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"uniqueIndex;not null" json:"name"`
	DefaultPrice float64   `gorm:"not null" json:"default_price"`
	Active       bool      `gorm:"not null" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ProcedureTemplate) TableName() string { return "procedure_templates" }

// TemplateInput is one row of a replace-all template save. A nil Active
// means active.
type TemplateInput struct {
	ID           *int64  `json:"id,omitempty"`
	Name         string  `json:"name"`
	DefaultPrice float64 `json:"default_price"`
	Active       *bool   `json:"active,omitempty"`
}

// DiagnosisOption is a label offered in the odontogram palette.
type DiagnosisOption struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Label     string    `gorm:"uniqueIndex;not null" json:"label"`
	Color     string    `json:"color"`
	Active    bool      `gorm:"not null" json:"active"`
	SortOrder int       `gorm:"not null" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DiagnosisOption) TableName() string { return "diagnosis_options" }

type OptionInput struct {
	ID        *int64 `json:"id,omitempty"`
	Label     string `json:"label"`
	Color     string `json:"color"`
	Active    *bool  `json:"active,omitempty"`
	SortOrder int    `json:"sort_order"`
}

type Signer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Signer) TableName() string { return "signers" }

type ReasonType struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	SortOrder int       `gorm:"not null" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ReasonType) TableName() string { return "reason_types" }

type PaymentMethod struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	SortOrder int       `gorm:"not null" json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

// DoctorProfile holds the clinic letterhead. The table keeps a single row.
type DoctorProfile struct {
	ID            int64      `gorm:"primaryKey" json:"id"`
	DoctorID      string     `json:"doctor_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	ClinicName    string     `json:"clinic_name"`
	ClinicHours   string     `json:"clinic_hours"`
	ClinicSlogan  string     `json:"clinic_slogan"`
	Phone         string     `json:"phone"`
	Location      string     `json:"location"`
	AppVersion    string     `json:"app_version"`
	AgreedToTerms bool       `gorm:"not null" json:"agreed_to_terms"`
	LastSync      *time.Time `json:"last_sync,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (DoctorProfile) TableName() string { return "doctor_profile" }

// DefaultAppVersion is recorded on the first profile insert when none is given.
const DefaultAppVersion = "1.0.0"

type Setting struct {
	Key      string `gorm:"primaryKey" json:"key"`
	Value    string `gorm:"not null" json:"value"`
	Category string `json:"category"`
}

func (Setting) TableName() string { return "user_settings" }

// DefaultSettings is what ResetSettings restores.
var DefaultSettings = []Setting{
	{Key: "theme", Value: "dark", Category: "appearance"},
	{Key: "brandHsl", Value: "172 49% 56%", Category: "appearance"},
	{Key: "font", Value: "Inter", Category: "appearance"},
	{Key: "size", Value: "16", Category: "appearance"},
	{Key: "layoutMode", Value: "vertical", Category: "appearance"},
}
