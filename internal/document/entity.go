// Package document provides the generic machinery shared by every catalogue
// document type: per-type field descriptor tables, the field-level differ,
// and the three-way merge engine that reconciles an actual document with the
// additions and deletions snapshotted on a moderation request.
package document

// Obligation is a nested sub-entity carried by a document. It is shared
// across departments; each department controls only its own membership in
// the whitelist. An obligation flagged Temporary was introduced by the
// current edit and is not yet present in the actual document.
type Obligation struct {
	ID        string   `json:"id"`
	Topic     string   `json:"topic,omitempty"`
	Text      string   `json:"text,omitempty"`
	Temporary bool     `json:"temporary,omitempty"`
	Whitelist []string `json:"whitelist,omitempty"`
}

func (o Obligation) clone() Obligation {
	out := o
	out.Whitelist = append([]string(nil), o.Whitelist...)
	return out
}

// ExternalRef is a cross-reference record without a key of its own. All
// sub-fields are optional; an unset pointer stays unset through diff and
// merge. Identity is structural.
type ExternalRef struct {
	RefType  *string `json:"refType,omitempty"`
	URL      *string `json:"url,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	Relation *string `json:"relation,omitempty"`
	Supplier *string `json:"supplier,omitempty"`
}

// Equal reports structural equality over all sub-fields, treating unset and
// set-to-different-value as distinct.
func (r ExternalRef) Equal(other ExternalRef) bool {
	return strPtrEqual(r.RefType, other.RefType) &&
		strPtrEqual(r.URL, other.URL) &&
		strPtrEqual(r.Comment, other.Comment) &&
		strPtrEqual(r.Relation, other.Relation) &&
		strPtrEqual(r.Supplier, other.Supplier)
}

// Normalize copies every explicitly-set sub-field into a fresh value, so a
// partial delta merged into a document never aliases the submitter's copy.
func (r ExternalRef) Normalize() ExternalRef {
	var out ExternalRef
	out.RefType = copyStrPtr(r.RefType)
	out.URL = copyStrPtr(r.URL)
	out.Comment = copyStrPtr(r.Comment)
	out.Relation = copyStrPtr(r.Relation)
	out.Supplier = copyStrPtr(r.Supplier)
	return out
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func removeString(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
