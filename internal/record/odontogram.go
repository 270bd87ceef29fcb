package record

import "github.com/greenapple/dental/internal/domain/visit"

// OdontogramStore holds the live tooth diagnosis of every session in the
// record next to the snapshot taken when it was loaded or last saved.
// Originals only move through Load and the Snapshot methods.
type OdontogramStore struct {
	live     map[SessionKey]visit.ToothDx
	original map[SessionKey]visit.ToothDx
}

func NewOdontogramStore() *OdontogramStore {
	return &OdontogramStore{
		live:     map[SessionKey]visit.ToothDx{},
		original: map[SessionKey]visit.ToothDx{},
	}
}

// Load replaces both the live and the original maps with copies of m.
func (s *OdontogramStore) Load(m map[SessionKey]visit.ToothDx) {
	s.live = make(map[SessionKey]visit.ToothDx, len(m))
	s.original = make(map[SessionKey]visit.ToothDx, len(m))
	for k, dx := range m {
		s.live[k] = dx.Clone()
		s.original[k] = dx.Clone()
	}
}

func (s *OdontogramStore) Reset() { s.Load(nil) }

func (s *OdontogramStore) Set(key SessionKey, dx visit.ToothDx) error {
	if key.IsZero() {
		return ErrNoActiveSession
	}
	s.live[key] = dx.Clone()
	return nil
}

// Get returns a copy of the live map of key, empty when it has none.
func (s *OdontogramStore) Get(key SessionKey) visit.ToothDx {
	if dx, ok := s.live[key]; ok {
		return dx.Clone()
	}
	return visit.ToothDx{}
}

// Original returns a copy of the snapshot of key, empty when it has none.
func (s *OdontogramStore) Original(key SessionKey) visit.ToothDx {
	if dx, ok := s.original[key]; ok {
		return dx.Clone()
	}
	return visit.ToothDx{}
}

// Changed compares the live map of key with its snapshot. Missing, nil and
// empty maps are all equal.
func (s *OdontogramStore) Changed(key SessionKey) bool {
	if key.IsZero() {
		return false
	}
	return s.live[key].JSON() != s.original[key].JSON()
}

// Revert drops unsaved edits of key.
func (s *OdontogramStore) Revert(key SessionKey) {
	if dx, ok := s.original[key]; ok {
		s.live[key] = dx.Clone()
		return
	}
	delete(s.live, key)
}

func (s *OdontogramStore) SnapshotAsOriginal(key SessionKey) {
	if dx, ok := s.live[key]; ok {
		s.original[key] = dx.Clone()
		return
	}
	delete(s.original, key)
}

func (s *OdontogramStore) SnapshotAll() {
	s.original = make(map[SessionKey]visit.ToothDx, len(s.live))
	for k, dx := range s.live {
		s.original[k] = dx.Clone()
	}
}

// Rekey moves the live and original maps of from to to.
func (s *OdontogramStore) Rekey(from, to SessionKey) {
	if from == to {
		return
	}
	if dx, ok := s.live[from]; ok {
		s.live[to] = dx
		delete(s.live, from)
	}
	if dx, ok := s.original[from]; ok {
		s.original[to] = dx
		delete(s.original, from)
	}
}

func (s *OdontogramStore) Has(key SessionKey) bool {
	_, ok := s.live[key]
	return ok
}

// Seed sets both the live map and the snapshot of a session new to the store.
func (s *OdontogramStore) Seed(key SessionKey, dx visit.ToothDx) {
	s.live[key] = dx.Clone()
	s.original[key] = dx.Clone()
}

// Drop forgets key entirely.
func (s *OdontogramStore) Drop(key SessionKey) {
	delete(s.live, key)
	delete(s.original, key)
}
