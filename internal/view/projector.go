// Package view turns the note collection into display rows.
package view

import (
	"slices"

	"github.com/hpungsan/memo/internal/note"
)

// DisplayRow is one list entry. It is derived on every projection and never stored.
type DisplayRow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	IsActive  bool   `json:"is_active"`
}

// Projector sorts, filters and formats notes. It never mutates its input.
type Projector struct {
	format Formatter
}

// NewProjector creates a Projector. A nil format uses DefaultLayout in local time.
func NewProjector(format Formatter) *Projector {
	if format == nil {
		format = LayoutFormatter(DefaultLayout, nil)
	}
	return &Projector{format: format}
}

// Project returns the rows to display: notes whose derived title contains
// keyword (case-folded, trimmed; empty matches all), most recently updated
// first, with ties kept in collection order. The result is never nil.
func (p *Projector) Project(notes []note.Note, keyword, activeID string) []DisplayRow {
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b note.Note) int {
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		}
		return 0
	})

	rows := make([]DisplayRow, 0, len(sorted))
	for _, n := range sorted {
		if !note.Matches(n, keyword) {
			continue
		}
		rows = append(rows, DisplayRow{
			ID:        n.ID,
			Title:     n.DerivedTitle(),
			CreatedAt: p.format(n.CreatedAt),
			UpdatedAt: p.format(n.UpdatedAt),
			IsActive:  activeID != "" && n.ID == activeID,
		})
	}
	return rows
}
