package record

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/greenapple/dental/internal/domain/visit"
)

type KeyKind uint8

const (
	KeyNone KeyKind = iota
	KeyDraft
	KeySaved
)

// SessionKey identifies a session inside a record. Drafts created in memory
// carry a local id until the backend assigns a persisted one; the two never
// share a namespace. The zero value means "no session".
type SessionKey struct {
	Kind  KeyKind
	Local string
	ID    int64
}

func DraftKey(local string) SessionKey { return SessionKey{Kind: KeyDraft, Local: local} }

func SavedKey(id int64) SessionKey { return SessionKey{Kind: KeySaved, ID: id} }

// NewDraftKey returns a draft key with a fresh random local id.
func NewDraftKey() SessionKey { return DraftKey(uuid.NewString()) }

func (k SessionKey) IsZero() bool  { return k.Kind == KeyNone }
func (k SessionKey) IsDraft() bool { return k.Kind == KeyDraft }

func (k SessionKey) String() string {
	switch k.Kind {
	case KeyDraft:
		return "draft:" + k.Local
	case KeySaved:
		return "saved:" + strconv.FormatInt(k.ID, 10)
	}
	return "none"
}

// keyFor returns the key of a session read from the backend.
func keyFor(s visit.Session) SessionKey {
	if s.ID > 0 {
		return SavedKey(s.ID)
	}
	return NewDraftKey()
}

// Entry is one session of the record with its procedure lines. A session
// with IsSaved unset is a draft, whether or not it already has a row.
type Entry struct {
	Key          SessionKey
	Session      visit.Session
	Items        []visit.Item
	ManualBudget bool
}

func (e Entry) Draft() bool { return !e.Session.IsSaved }

func (e Entry) withItems() visit.WithItems {
	return visit.WithItems{Session: e.Session, Items: e.Items}
}

func (e Entry) clone() Entry {
	w := e.withItems().Clone()
	return Entry{Key: e.Key, Session: w.Session, Items: w.Items, ManualBudget: e.ManualBudget}
}

// recompute applies the client-side money rules of an editable session:
// subtotal per line, budget from active lines unless typed by hand, and a
// balance that never goes below zero.
func (e *Entry) recompute() {
	for i := range e.Items {
		it := &e.Items[i]
		it.Subtotal = it.UnitPrice * float64(it.Quantity)
	}
	if !e.ManualBudget {
		e.Session.Budget = e.withItems().ActiveTotal()
	}
	bal := e.Session.Budget - e.Session.Discount - e.Session.Payment
	if bal < 0 {
		bal = 0
	}
	e.Session.Balance = bal
}
