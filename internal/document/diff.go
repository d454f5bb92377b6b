package document

// Diff compares a submitted document against the actual stored one and
// produces the additions and deletions deltas. Only fields that actually
// changed appear in either delta; a field absent from both means "leave it
// alone". Set-valued fields are diffed element-wise: unchanged elements
// appear in neither delta.
//
// The returned deltas are fresh values; changed reports whether anything
// differs at all.
func Diff[T any](s *Schema[T], submitted, actual *T) (additions, deletions *T, changed bool) {
	additions = new(T)
	deletions = new(T)

	for _, f := range s.Scalars {
		sub, act := f.Get(submitted), f.Get(actual)
		switch {
		case sub == nil && act == nil:
		case sub != nil && (act == nil || *sub != *act):
			f.Set(additions, copyStrPtr(sub))
			changed = true
		case sub == nil && act != nil:
			f.Set(deletions, copyStrPtr(act))
			changed = true
		}
	}

	for _, f := range s.Sets {
		sub, act := f.Get(submitted), f.Get(actual)
		var added, removed []string
		for _, v := range sub {
			if !containsString(act, v) {
				added = append(added, v)
			}
		}
		for _, v := range act {
			if !containsString(sub, v) {
				removed = append(removed, v)
			}
		}
		if len(added) > 0 {
			f.Set(additions, added)
			changed = true
		}
		if len(removed) > 0 {
			f.Set(deletions, removed)
			changed = true
		}
	}

	for _, f := range s.Entities {
		sub, act := f.Get(submitted), f.Get(actual)
		var added, removed []Obligation
		for _, ob := range sub {
			if !containsObligation(act, ob) {
				added = append(added, ob.clone())
			}
		}
		for _, ob := range act {
			if !containsObligation(sub, ob) {
				removed = append(removed, ob.clone())
			}
		}
		if len(added) > 0 {
			f.Set(additions, added)
			changed = true
		}
		if len(removed) > 0 {
			f.Set(deletions, removed)
			changed = true
		}
	}

	for _, f := range s.Refs {
		sub, act := f.Get(submitted), f.Get(actual)
		var added, removed []ExternalRef
		for _, ref := range sub {
			if !containsRef(act, ref) {
				added = append(added, ref.Normalize())
			}
		}
		for _, ref := range act {
			if !containsRef(sub, ref) {
				removed = append(removed, ref.Normalize())
			}
		}
		if len(added) > 0 {
			f.Set(additions, added)
			changed = true
		}
		if len(removed) > 0 {
			f.Set(deletions, removed)
			changed = true
		}
	}

	return additions, deletions, changed
}

// containsObligation compares structurally, not by id: a whitelist edit to an
// existing obligation must surface as an addition/deletion pair so the merge
// engine can apply the department-scoped whitelist rules.
func containsObligation(list []Obligation, target Obligation) bool {
	for _, ob := range list {
		if obligationEqual(ob, target) {
			return true
		}
	}
	return false
}

func obligationEqual(a, b Obligation) bool {
	if a.ID != b.ID || a.Topic != b.Topic || a.Text != b.Text || a.Temporary != b.Temporary {
		return false
	}
	if len(a.Whitelist) != len(b.Whitelist) {
		return false
	}
	for _, v := range a.Whitelist {
		if !containsString(b.Whitelist, v) {
			return false
		}
	}
	return true
}

func containsRef(list []ExternalRef, target ExternalRef) bool {
	for _, ref := range list {
		if ref.Equal(target) {
			return true
		}
	}
	return false
}
