package record

// DraftTracker keeps one baseline rendering per draft session, taken the
// first time the draft is seen, so in-place edits can be told apart from
// freshly created drafts.
type DraftTracker struct {
	baselines map[SessionKey]string
}

func NewDraftTracker() *DraftTracker {
	return &DraftTracker{baselines: map[SessionKey]string{}}
}

// Reconcile adds baselines for unseen drafts and drops baselines of drafts
// that are gone or no longer drafts. It reports whether anything changed;
// a second call with the same entries is a no-op.
func (t *DraftTracker) Reconcile(entries []Entry) bool {
	changed := false
	current := make(map[SessionKey]struct{}, len(entries))
	for _, e := range entries {
		if !e.Draft() {
			continue
		}
		current[e.Key] = struct{}{}
		if _, ok := t.baselines[e.Key]; !ok {
			t.baselines[e.Key] = Canonical(e)
			changed = true
		}
	}
	for k := range t.baselines {
		if _, ok := current[k]; !ok {
			delete(t.baselines, k)
			changed = true
		}
	}
	return changed
}

// Changed lists, in entry order, the drafts whose rendering differs from
// their baseline. Drafts without a baseline are not reported.
func (t *DraftTracker) Changed(entries []Entry) []SessionKey {
	var out []SessionKey
	for _, e := range entries {
		if !e.Draft() {
			continue
		}
		base, ok := t.baselines[e.Key]
		if ok && base != Canonical(e) {
			out = append(out, e.Key)
		}
	}
	return out
}

func (t *DraftTracker) Len() int { return len(t.baselines) }

func (t *DraftTracker) Reset() { t.baselines = map[SessionKey]string{} }
