package record

import "strings"

// Changes is the combined change state of a record.
type Changes struct {
	HasPatientData           bool
	HasPatientChanges        bool
	HasOdontogramChanges     bool
	HasNewAttachments        bool
	HasDraftSessions         bool
	DraftSessionChanges      []SessionKey
	HasDraftSessionChanges   bool
	DraftSessionChangesCount int
	// Count is the badge value: one per changed facet plus one per draft.
	Count   int
	CanSave bool
}

func (r *Record) Changes() Changes {
	edited := r.drafts.Changed(r.entries)
	drafts := r.draftCount()
	odontogram := r.odontograms.Changed(r.active)

	c := Changes{
		HasPatientData:           r.HasPatientData(),
		HasPatientChanges:        r.patientChanged(),
		HasOdontogramChanges:     odontogram || r.manualDxChanged(),
		HasNewAttachments:        r.hasPendingAttachments(),
		HasDraftSessions:         drafts > 0,
		DraftSessionChanges:      edited,
		HasDraftSessionChanges:   len(edited) > 0,
		DraftSessionChangesCount: len(edited),
	}
	for _, on := range []bool{c.HasPatientChanges, c.HasOdontogramChanges, c.HasNewAttachments} {
		if on {
			c.Count++
		}
	}
	c.Count += drafts

	// A new patient is only written together with a session so that no
	// empty patient rows are created.
	if r.patient.ID > 0 {
		c.CanSave = c.HasPatientData &&
			(c.HasDraftSessions || c.HasOdontogramChanges || c.HasNewAttachments || c.HasPatientChanges)
	} else {
		c.CanSave = c.HasPatientData && (c.HasDraftSessions || odontogram)
	}
	return c
}

func (r *Record) patientChanged() bool {
	if r.originalPatient == nil {
		if r.patient.ID > 0 {
			return false
		}
		return r.HasPatientData()
	}
	return r.patient.Profile() != *r.originalPatient
}

func (r *Record) manualDxChanged() bool {
	return strings.TrimSpace(r.manualDx) != strings.TrimSpace(r.originalManualDx)
}

func (r *Record) hasPendingAttachments() bool {
	for _, a := range r.attachments {
		if a.Pending() {
			return true
		}
	}
	return false
}
