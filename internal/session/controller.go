// Package session tracks which note is open for editing and turns user
// intents into repository operations and render-ready state.
package session

import (
	"context"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
	"github.com/hpungsan/memo/internal/repository"
)

// ConfirmFunc asks the presentation layer whether n may be deleted.
type ConfirmFunc func(n note.Note) bool

// Controller holds the active selection: unselected, or selected(id).
type Controller struct {
	repo   *repository.Repository
	active string // empty means unselected
	cancel func()
}

// NewController creates an unselected Controller. The Controller clears its
// selection whenever the selected note leaves the repository.
func NewController(repo *repository.Repository) *Controller {
	c := &Controller{repo: repo}
	c.cancel = repo.Subscribe(c.onEvent)
	return c
}

// Active returns the selected note id.
func (c *Controller) Active() (string, bool) {
	return c.active, c.active != ""
}

// Open selects id if the note exists. Otherwise the selection is unchanged.
func (c *Controller) Open(id string) bool {
	if _, ok := c.repo.Find(id); !ok {
		return false
	}
	c.active = id
	return true
}

// StartNew creates an empty note and selects it.
func (c *Controller) StartNew(ctx context.Context) (note.Note, error) {
	return c.create(ctx, "", "")
}

// Save creates a note from the fields when unselected, or updates the
// selected note. If the selected note has vanished the selection is cleared
// and NOT_FOUND is returned.
func (c *Controller) Save(ctx context.Context, title, content string) (note.Note, error) {
	if c.active == "" {
		return c.create(ctx, title, content)
	}

	n, err := c.repo.Update(ctx, c.active, title, content)
	if errors.Is(err, errors.ErrNotFound) {
		c.active = ""
	}
	return n, err
}

// Delete removes the selected note if confirm agrees (nil confirm agrees).
// It reports whether a note was removed. With no selection it does nothing.
func (c *Controller) Delete(ctx context.Context, confirm ConfirmFunc) (bool, error) {
	if c.active == "" {
		return false, nil
	}

	n, ok := c.repo.Find(c.active)
	if !ok {
		id := c.active
		c.active = ""
		return false, errors.NewNotFound(id)
	}
	if confirm != nil && !confirm(n) {
		return false, nil
	}

	err := c.repo.Delete(ctx, n.ID)
	c.active = ""
	if errors.Is(err, errors.ErrNotFound) {
		return false, err
	}
	// PERSISTENCE_FAILURE still removed the note from memory
	return true, err
}

// Close clears the selection without deleting anything.
func (c *Controller) Close() {
	c.active = ""
}

// Release detaches the Controller from repository events.
func (c *Controller) Release() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) create(ctx context.Context, title, content string) (note.Note, error) {
	n, err := c.repo.Create(ctx, title, content)
	if n.ID != "" {
		// Selected even on PERSISTENCE_FAILURE: the note exists in memory
		c.active = n.ID
	}
	return n, err
}

func (c *Controller) onEvent(e repository.Event) {
	if c.active == "" {
		return
	}
	switch e.Kind {
	case repository.EventDeleted:
		if e.ID == c.active {
			c.active = ""
		}
	case repository.EventReloaded:
		if _, ok := c.repo.Find(c.active); !ok {
			c.active = ""
		}
	}
}
