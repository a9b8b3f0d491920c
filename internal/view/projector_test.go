package view

import (
	"testing"
	"time"

	"github.com/hpungsan/memo/internal/note"
)

func utcProjector() *Projector {
	return NewProjector(LayoutFormatter(DefaultLayout, time.UTC))
}

func rowIDs(rows []DisplayRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestProject_OrdersByUpdatedAtDescending(t *testing.T) {
	notes := []note.Note{
		{ID: "A", Title: "A", UpdatedAt: 100},
		{ID: "B", Title: "B", UpdatedAt: 300},
		{ID: "C", Title: "C", UpdatedAt: 200},
	}

	got := rowIDs(utcProjector().Project(notes, "", ""))
	if want := []string{"B", "C", "A"}; !equalStrings(got, want) {
		t.Errorf("Project() order = %v, want %v", got, want)
	}

	// Input is not reordered
	if notes[0].ID != "A" || notes[1].ID != "B" {
		t.Errorf("Project() mutated its input: %v", notes)
	}
}

func TestProject_TiesKeepCollectionOrder(t *testing.T) {
	notes := []note.Note{
		{ID: "first", UpdatedAt: 100},
		{ID: "newer", UpdatedAt: 500},
		{ID: "second", UpdatedAt: 100},
		{ID: "third", UpdatedAt: 100},
	}

	got := rowIDs(utcProjector().Project(notes, "", ""))
	if want := []string{"newer", "first", "second", "third"}; !equalStrings(got, want) {
		t.Errorf("Project() order = %v, want %v", got, want)
	}
}

func TestProject_Search(t *testing.T) {
	notes := []note.Note{
		{ID: "g", Title: "Groceries", UpdatedAt: 1},
		{ID: "t", Title: "Taxes", UpdatedAt: 2},
	}

	tests := []struct {
		keyword string
		want    []string
	}{
		{"ROC", []string{"g"}},
		{"  roc  ", []string{"g"}},
		{"", []string{"t", "g"}},
		{"es", []string{"t", "g"}},
		{"zzz", []string{}},
	}

	p := utcProjector()
	for _, tt := range tests {
		rows := p.Project(notes, tt.keyword, "")
		if rows == nil {
			t.Fatalf("Project(%q) returned nil, want empty slice", tt.keyword)
		}
		if got := rowIDs(rows); !equalStrings(got, tt.want) {
			t.Errorf("Project(%q) = %v, want %v", tt.keyword, got, tt.want)
		}
	}
}

func TestProject_EmptyCollection(t *testing.T) {
	rows := utcProjector().Project(nil, "", "")
	if rows == nil || len(rows) != 0 {
		t.Errorf("Project(nil) = %v, want empty non-nil slice", rows)
	}
}

func TestProject_Idempotent(t *testing.T) {
	notes := []note.Note{
		{ID: "1", Content: "one", UpdatedAt: 5},
		{ID: "2", Title: "two", UpdatedAt: 5},
		{ID: "3", UpdatedAt: 9},
	}
	p := utcProjector()

	first := p.Project(notes, "", "2")
	second := p.Project(notes, "", "2")
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestProject_Rows(t *testing.T) {
	created := time.Date(2024, 3, 9, 10, 11, 0, 0, time.UTC)
	updated := created.Add(90 * time.Minute)
	notes := []note.Note{
		{ID: "x", Content: "\nfirst line\nsecond", CreatedAt: note.Millis(created), UpdatedAt: note.Millis(updated)},
		{ID: "y", UpdatedAt: 0},
	}

	rows := utcProjector().Project(notes, "", "y")
	if len(rows) != 2 {
		t.Fatalf("Project() returned %d rows, want 2", len(rows))
	}

	want := DisplayRow{ID: "x", Title: "first line", CreatedAt: "2024/03/09 10:11", UpdatedAt: "2024/03/09 11:41"}
	if rows[0] != want {
		t.Errorf("rows[0] = %+v, want %+v", rows[0], want)
	}
	if rows[1].Title != note.Placeholder || !rows[1].IsActive {
		t.Errorf("rows[1] = %+v, want active placeholder row", rows[1])
	}
}

func TestProject_NoActiveWhenEmptyID(t *testing.T) {
	rows := utcProjector().Project([]note.Note{{ID: ""}}, "", "")
	if rows[0].IsActive {
		t.Error("empty active id must not mark rows active")
	}
}

func TestRelativeFormatter(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	format := RelativeFormatter(func() time.Time { return now })

	if got := format(note.Millis(now.Add(-3 * time.Minute))); got != "3 minutes ago" {
		t.Errorf("format(-3m) = %q, want %q", got, "3 minutes ago")
	}
	if got := format(note.Millis(now.Add(-2 * time.Hour))); got != "2 hours ago" {
		t.Errorf("format(-2h) = %q, want %q", got, "2 hours ago")
	}
}

func TestNewFormatter(t *testing.T) {
	ms := note.Millis(time.Date(2024, 3, 9, 10, 11, 0, 0, time.Local))

	if got := NewFormatter("")(ms); got != "2024/03/09 10:11" {
		t.Errorf("default layout = %q", got)
	}
	if got := NewFormatter("2006-01-02")(ms); got != "2024-03-09" {
		t.Errorf("custom layout = %q", got)
	}
	if got := NewFormatter("relative")(note.Millis(time.Now())); got != "now" {
		t.Errorf("relative = %q, want now", got)
	}
}
