package attachment

import "time"

const KindFile = "file"

// Attachment is the metadata row of a stored file. SessionID is nil for
// patient-general files.
type Attachment struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	PatientID  int64     `gorm:"index;not null" json:"patient_id"`
	SessionID  *int64    `gorm:"index" json:"session_id,omitempty"`
	Kind       string    `gorm:"size:16;default:file" json:"kind"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	StorageKey string    `gorm:"not null" json:"storage_key"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "attachments" }

// Meta describes a file already written to the file store.
type Meta struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Bytes      int64  `json:"bytes"`
	StorageKey string `json:"storage_key"`
}
