package document

import "go.uber.org/zap"

// Context carries the submitter-side facts the merge engine needs. The
// department scopes whitelist edits: a department can only add or retract
// its own membership in a shared obligation's whitelist.
type Context struct {
	Department string
	Logger     *zap.Logger
}

func (mc Context) logger() *zap.Logger {
	if mc.Logger == nil {
		return zap.NewNop()
	}
	return mc.Logger
}

// Merge reconciles the actual document with the additions and deletions
// deltas and returns a new document. The inputs are never mutated; a field
// absent from both deltas is carried over untouched, so
// Merge(d, empty, empty, mc) equals d.
//
// Malformed delta elements (a non-temporary obligation addition whose id is
// not present in the actual document) are logged and skipped per element
// rather than failing the whole merge.
func Merge[T any](s *Schema[T], actual, additions, deletions *T, mc Context) *T {
	result := s.Clone(actual)
	log := mc.logger()

	for _, f := range s.Scalars {
		if additions != nil {
			if v := f.Get(additions); v != nil {
				f.Set(result, copyStrPtr(v))
				continue
			}
		}
		if deletions != nil && f.Get(deletions) != nil {
			f.Set(result, nil)
		}
	}

	for _, f := range s.Sets {
		var toAdd, toRemove []string
		if additions != nil {
			toAdd = f.Get(additions)
		}
		if deletions != nil {
			toRemove = f.Get(deletions)
		}
		if toAdd == nil && toRemove == nil {
			continue
		}
		merged := f.Get(result)
		for _, v := range toAdd {
			if !containsString(merged, v) {
				merged = append(merged, v)
			}
		}
		// An element both added and deleted resolves in favor of deletion.
		for _, v := range toRemove {
			merged = removeString(merged, v)
		}
		f.Set(result, merged)
	}

	for _, f := range s.Entities {
		merged := f.Get(result)
		if additions != nil {
			for _, ob := range f.Get(additions) {
				if ob.Temporary {
					appended := ob.clone()
					appended.Temporary = false
					merged = append(merged, appended)
					continue
				}
				idx := indexOfObligation(merged, ob.ID)
				if idx < 0 {
					log.Warn("obligation addition references unknown id, skipping",
						zap.String("docType", s.Type),
						zap.String("field", f.Name),
						zap.String("obligationId", ob.ID))
					continue
				}
				if containsString(ob.Whitelist, mc.Department) &&
					!containsString(merged[idx].Whitelist, mc.Department) {
					merged[idx].Whitelist = append(merged[idx].Whitelist, mc.Department)
				}
			}
		}
		if deletions != nil {
			for _, ob := range f.Get(deletions) {
				idx := indexOfObligation(merged, ob.ID)
				if idx < 0 {
					log.Info("obligation deletion references absent id, skipping",
						zap.String("docType", s.Type),
						zap.String("field", f.Name),
						zap.String("obligationId", ob.ID))
					continue
				}
				if containsString(merged[idx].Whitelist, mc.Department) &&
					containsString(ob.Whitelist, mc.Department) {
					merged[idx].Whitelist = removeString(merged[idx].Whitelist, mc.Department)
				}
			}
		}
		f.Set(result, merged)
	}

	for _, f := range s.Refs {
		merged := f.Get(result)
		if additions != nil {
			for _, ref := range f.Get(additions) {
				normalized := ref.Normalize()
				if !containsRef(merged, normalized) {
					merged = append(merged, normalized)
				}
			}
		}
		if deletions != nil {
			for _, ref := range f.Get(deletions) {
				kept := merged[:0]
				for _, existing := range merged {
					if !existing.Equal(ref) {
						kept = append(kept, existing)
					}
				}
				merged = kept
			}
		}
		f.Set(result, merged)
	}

	return result
}

func indexOfObligation(list []Obligation, id string) int {
	for i, ob := range list {
		if ob.ID == id {
			return i
		}
	}
	return -1
}
