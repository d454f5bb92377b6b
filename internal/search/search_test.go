package search

import "testing"

func TestParseQueryFieldFilters(t *testing.T) {
	q := ParseQuery("docType:license state:PENDING apache", 20, 0)

	if q.Filters["docType"] != "license" {
		t.Errorf("docType filter = %q, want license", q.Filters["docType"])
	}
	if q.Filters["state"] != "PENDING" {
		t.Errorf("state filter = %q, want PENDING", q.Filters["state"])
	}
	if q.Text != "apache" {
		t.Errorf("free text = %q, want apache", q.Text)
	}
}

func TestParseQueryUnknownFieldKeptAsText(t *testing.T) {
	q := ParseQuery("color:blue moderator:bob", 20, 0)

	if q.Text != "color:blue" {
		t.Errorf("free text = %q, want color:blue", q.Text)
	}
	if q.Filters["moderator"] != "bob" {
		t.Errorf("moderator filter = %q, want bob", q.Filters["moderator"])
	}
	if _, ok := q.Filters["color"]; ok {
		t.Error("unknown field must not become a filter")
	}
}

func TestParseQueryEmptyValueIsText(t *testing.T) {
	q := ParseQuery("state: gpl", 10, 5)

	if len(q.Filters) != 0 {
		t.Errorf("filters = %v, want none", q.Filters)
	}
	if q.Text != "state: gpl" {
		t.Errorf("free text = %q, want %q", q.Text, "state: gpl")
	}
	if q.Limit != 10 || q.Offset != 5 {
		t.Errorf("limit/offset = %d/%d, want 10/5", q.Limit, q.Offset)
	}
}
