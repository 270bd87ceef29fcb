package record

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/greenapple/dental/internal/domain/attachment"
)

const defaultMimeType = "application/octet-stream"

// FileSource yields the bytes of a file picked by the user but not yet
// written to the file store.
type FileSource interface {
	Open() (io.ReadCloser, error)
}

type bytesSource []byte

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// BytesFile is a FileSource over an in-memory buffer.
func BytesFile(b []byte) FileSource { return bytesSource(b) }

// Attachment is a file of the record. A pending attachment has a TempID and
// a File and no ID; once saved it has an ID and StorageKey and File is nil.
// A zero Session key means the file belongs to the patient, not to a visit.
type Attachment struct {
	TempID     string
	ID         int64
	Session    SessionKey
	Name       string
	MimeType   string
	Size       int64
	StorageKey string
	UploadedAt time.Time
	File       FileSource
}

func (a Attachment) Pending() bool { return a.File != nil && a.ID == 0 }

func newPendingAttachment(name, mimeType string, size int64, file FileSource, session SessionKey) Attachment {
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return Attachment{
		TempID:   uuid.NewString(),
		Session:  session,
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		File:     file,
	}
}

func fromStored(a *attachment.Attachment) Attachment {
	out := Attachment{
		ID:         a.ID,
		Name:       a.Filename,
		MimeType:   a.MimeType,
		Size:       a.SizeBytes,
		StorageKey: a.StorageKey,
		UploadedAt: a.CreatedAt,
	}
	if a.SessionID != nil && *a.SessionID > 0 {
		out.Session = SavedKey(*a.SessionID)
	}
	return out
}
