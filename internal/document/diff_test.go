package document

import (
	"reflect"
	"testing"
)

// testDoc is a minimal document type exercising every field kind.
type testDoc struct {
	Name        *string
	Note        *string
	Tags        []string
	Obligations []Obligation
	Refs        []ExternalRef
}

func (d *testDoc) clone() *testDoc {
	out := *d
	out.Name = copyStrPtr(d.Name)
	out.Note = copyStrPtr(d.Note)
	out.Tags = append([]string(nil), d.Tags...)
	out.Obligations = make([]Obligation, len(d.Obligations))
	for i, ob := range d.Obligations {
		out.Obligations[i] = ob.clone()
	}
	out.Refs = make([]ExternalRef, len(d.Refs))
	for i, ref := range d.Refs {
		out.Refs[i] = ref.Normalize()
	}
	return &out
}

var testSchema = &Schema[testDoc]{
	Type: "testdoc",
	Scalars: []ScalarField[testDoc]{
		{Name: "name", Get: func(d *testDoc) *string { return d.Name }, Set: func(d *testDoc, v *string) { d.Name = v }},
		{Name: "note", Get: func(d *testDoc) *string { return d.Note }, Set: func(d *testDoc, v *string) { d.Note = v }},
	},
	Sets: []SetField[testDoc]{
		{Name: "tags", Get: func(d *testDoc) []string { return d.Tags }, Set: func(d *testDoc, v []string) { d.Tags = v }},
	},
	Entities: []EntityField[testDoc]{
		{Name: "obligations", Get: func(d *testDoc) []Obligation { return d.Obligations }, Set: func(d *testDoc, v []Obligation) { d.Obligations = v }},
	},
	Refs: []RefField[testDoc]{
		{Name: "refs", Get: func(d *testDoc) []ExternalRef { return d.Refs }, Set: func(d *testDoc, v []ExternalRef) { d.Refs = v }},
	},
	Clone: func(d *testDoc) *testDoc { return d.clone() },
}

func strp(s string) *string {
	return &s
}

func TestDiffIdenticalDocumentsIsNoChange(t *testing.T) {
	doc := &testDoc{
		Name:        strp("GPL-2.0"),
		Tags:        []string{"copyleft", "osi"},
		Obligations: []Obligation{{ID: "ob1", Topic: "notice", Whitelist: []string{"DeptA"}}},
		Refs:        []ExternalRef{{URL: strp("https://example.org")}},
	}
	_, _, changed := Diff(testSchema, doc.clone(), doc)
	if changed {
		t.Fatal("identical documents must not produce a change")
	}
}

func TestDiffScalarChangeAndClear(t *testing.T) {
	actual := &testDoc{Name: strp("old"), Note: strp("keep me")}
	submitted := &testDoc{Name: strp("new")}

	additions, deletions, changed := Diff(testSchema, submitted, actual)
	if !changed {
		t.Fatal("expected a change")
	}
	if additions.Name == nil || *additions.Name != "new" {
		t.Errorf("additions.Name = %v, want new", additions.Name)
	}
	if deletions.Note == nil || *deletions.Note != "keep me" {
		t.Errorf("deletions.Note = %v, want keep me", deletions.Note)
	}
	if additions.Note != nil || deletions.Name != nil {
		t.Error("unchanged directions must stay empty")
	}
}

func TestDiffSetsAreElementWise(t *testing.T) {
	actual := &testDoc{Tags: []string{"a", "b", "c"}}
	submitted := &testDoc{Tags: []string{"b", "c", "d"}}

	additions, deletions, changed := Diff(testSchema, submitted, actual)
	if !changed {
		t.Fatal("expected a change")
	}
	if !reflect.DeepEqual(additions.Tags, []string{"d"}) {
		t.Errorf("additions.Tags = %v, want [d]", additions.Tags)
	}
	if !reflect.DeepEqual(deletions.Tags, []string{"a"}) {
		t.Errorf("deletions.Tags = %v, want [a]", deletions.Tags)
	}
}

func TestDiffObligationWhitelistEditSurfacesBothSides(t *testing.T) {
	actual := &testDoc{Obligations: []Obligation{
		{ID: "ob1", Topic: "notice", Whitelist: []string{"DeptA", "DeptB"}},
	}}
	submitted := &testDoc{Obligations: []Obligation{
		{ID: "ob1", Topic: "notice", Whitelist: []string{"DeptA"}},
	}}

	additions, deletions, changed := Diff(testSchema, submitted, actual)
	if !changed {
		t.Fatal("whitelist edit must register as a change")
	}
	if len(additions.Obligations) != 1 || len(additions.Obligations[0].Whitelist) != 1 {
		t.Fatalf("additions.Obligations = %+v, want the submitted variant", additions.Obligations)
	}
	if len(deletions.Obligations) != 1 || len(deletions.Obligations[0].Whitelist) != 2 {
		t.Fatalf("deletions.Obligations = %+v, want the stored variant", deletions.Obligations)
	}
}

func TestDiffObligationWhitelistOrderInsensitive(t *testing.T) {
	actual := &testDoc{Obligations: []Obligation{
		{ID: "ob1", Whitelist: []string{"DeptA", "DeptB"}},
	}}
	submitted := &testDoc{Obligations: []Obligation{
		{ID: "ob1", Whitelist: []string{"DeptB", "DeptA"}},
	}}

	if _, _, changed := Diff(testSchema, submitted, actual); changed {
		t.Fatal("whitelist order must not register as a change")
	}
}

func TestDiffExternalRefsStructural(t *testing.T) {
	actual := &testDoc{Refs: []ExternalRef{
		{RefType: strp("website"), URL: strp("https://old.example.org")},
	}}
	submitted := &testDoc{Refs: []ExternalRef{
		{RefType: strp("website"), URL: strp("https://new.example.org")},
	}}

	additions, deletions, changed := Diff(testSchema, submitted, actual)
	if !changed {
		t.Fatal("expected a change")
	}
	if len(additions.Refs) != 1 || *additions.Refs[0].URL != "https://new.example.org" {
		t.Errorf("additions.Refs = %+v", additions.Refs)
	}
	if len(deletions.Refs) != 1 || *deletions.Refs[0].URL != "https://old.example.org" {
		t.Errorf("deletions.Refs = %+v", deletions.Refs)
	}
}
