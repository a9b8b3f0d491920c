package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/memo/internal/errors"
	"github.com/hpungsan/memo/internal/note"
	"github.com/hpungsan/memo/internal/repository"
	"github.com/hpungsan/memo/internal/view"
)

// DefaultNoticeDelay is how long a "saved" notice stays up.
const DefaultNoticeDelay = 1500 * time.Millisecond

// NoticeKind classifies a transient message.
type NoticeKind string

const (
	NoticeSaved   NoticeKind = "saved"
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
)

// Notice is a transient message for the user. DismissAfter > 0 asks the
// presentation layer to hide it after that delay.
type Notice struct {
	Kind         NoticeKind       `json:"kind"`
	Code         errors.ErrorCode `json:"code,omitempty"`
	Message      string           `json:"message"`
	DismissAfter time.Duration    `json:"-"`
}

// MarshalJSON writes DismissAfter as whole milliseconds.
func (n Notice) MarshalJSON() ([]byte, error) {
	type alias Notice
	return json.Marshal(struct {
		alias
		DismissAfterMillis int64 `json:"dismiss_after_ms,omitempty"`
	}{alias(n), n.DismissAfter.Milliseconds()})
}

// State is everything the presentation layer renders.
type State struct {
	Rows          []view.DisplayRow `json:"rows"`
	Keyword       string            `json:"keyword"`
	ActiveID      string            `json:"active_id,omitempty"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	ContentLength int               `json:"content_length"`
	EditorVisible bool              `json:"editor_visible"`
	Notice        *Notice           `json:"notice,omitempty"`
}

// Session connects intents to the Repository, Controller and Projector.
// Every intent returns the resulting State and never fails; failures become
// a Notice. It is not safe for concurrent use.
type Session struct {
	repo      *repository.Repository
	ctl       *Controller
	projector *view.Projector
	confirm   ConfirmFunc
	delay     time.Duration
	log       zerolog.Logger

	keyword string
	notice  *Notice

	subs    []stateSubscriber
	nextSub int
}

type stateSubscriber struct {
	id int
	fn func(State)
}

// Option configures a Session.
type Option func(*Session)

// WithProjector sets the list projector (default: local time, DefaultLayout).
func WithProjector(p *view.Projector) Option {
	return func(s *Session) { s.projector = p }
}

// WithConfirm sets the delete confirmation capability. Without one, deletes proceed.
func WithConfirm(confirm ConfirmFunc) Option {
	return func(s *Session) { s.confirm = confirm }
}

// WithNoticeDelay sets how long a saved notice stays visible.
func WithNoticeDelay(d time.Duration) Option {
	return func(s *Session) { s.delay = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// New creates a Session over repo. A load failure recorded by the repository
// is surfaced as the initial notice.
func New(repo *repository.Repository, opts ...Option) *Session {
	s := &Session{
		repo:  repo,
		ctl:   NewController(repo),
		delay: DefaultNoticeDelay,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.projector == nil {
		s.projector = view.NewProjector(nil)
	}
	if err := repo.LoadError(); err != nil {
		s.notice = s.noticeFor(err)
	}
	return s
}

// Controller exposes the active note controller.
func (s *Session) Controller() *Controller {
	return s.ctl
}

// State returns the current state without changing anything.
func (s *Session) State() State {
	id, selected := s.ctl.Active()
	st := State{
		Rows:          s.projector.Project(s.repo.All(), s.keyword, id),
		Keyword:       s.keyword,
		ActiveID:      id,
		EditorVisible: selected,
		Notice:        s.notice,
	}

	if selected {
		if n, found := s.repo.Find(id); found {
			st.Title = n.Title
			st.Content = n.Content
			st.ContentLength = note.CountChars(n.Content)
		}
	}
	return st
}

// Subscribe registers fn to receive the State after every intent.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, stateSubscriber{id: id, fn: fn})

	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// CreateRequested starts a new empty note and opens it.
func (s *Session) CreateRequested(ctx context.Context) State {
	s.notice = nil
	if _, err := s.ctl.StartNew(ctx); err != nil {
		s.fail("create", err)
	}
	return s.emit()
}

// OpenRequested opens the note with id. Opening a vanished note leaves the
// selection as is and reports an info notice.
func (s *Session) OpenRequested(id string) State {
	s.notice = nil
	if !s.ctl.Open(id) {
		s.fail("open", errors.NewNotFound(id))
	}
	return s.emit()
}

// SaveRequested writes the editor fields to the open note, or creates one.
func (s *Session) SaveRequested(ctx context.Context, title, content string) State {
	s.notice = nil
	if _, err := s.ctl.Save(ctx, title, content); err != nil {
		s.fail("save", err)
	} else {
		s.saved()
	}
	return s.emit()
}

// DeleteRequested deletes the open note once the confirmation capability agrees.
func (s *Session) DeleteRequested(ctx context.Context) State {
	s.notice = nil
	deleted, err := s.ctl.Delete(ctx, s.confirm)
	switch {
	case err != nil:
		s.fail("delete", err)
	case deleted:
		s.notice = &Notice{Kind: NoticeInfo, Message: "Note deleted"}
	}
	return s.emit()
}

// SearchChanged filters the list by keyword.
func (s *Session) SearchChanged(keyword string) State {
	s.notice = nil
	s.keyword = keyword
	return s.emit()
}

// CloseRequested hides the editor without deleting.
func (s *Session) CloseRequested() State {
	s.notice = nil
	s.ctl.Close()
	return s.emit()
}

// RetryRequested persists the in-memory collection again after a failure.
func (s *Session) RetryRequested(ctx context.Context) State {
	s.notice = nil
	if err := s.repo.Flush(ctx); err != nil {
		s.fail("retry", err)
	} else {
		s.saved()
	}
	return s.emit()
}

// Reload re-reads the store after an external change.
func (s *Session) Reload(ctx context.Context) State {
	s.notice = nil
	if err := s.repo.Reload(ctx); err != nil {
		s.fail("reload", err)
	}
	return s.emit()
}

func (s *Session) saved() {
	s.notice = &Notice{Kind: NoticeSaved, Message: "Saved", DismissAfter: s.delay}
}

func (s *Session) fail(op string, err error) {
	s.notice = s.noticeFor(err)
	if s.notice.Kind == NoticeWarning {
		s.log.Warn().Err(err).Str("op", op).Msg("note operation failed")
	} else {
		s.log.Debug().Err(err).Str("op", op).Msg("note operation skipped")
	}
}

// noticeFor maps an error to a notice: NOT_FOUND is informational, every
// other failure is a warning. Causes stay in the log, not the message.
func (s *Session) noticeFor(err error) *Notice {
	mErr, ok := errors.As(err)
	if !ok {
		mErr = errors.NewInternal(err)
	}

	kind := NoticeWarning
	msg := mErr.Message
	switch mErr.Code {
	case errors.ErrNotFound:
		kind = NoticeInfo
		msg = "That note no longer exists"
	case errors.ErrPersistenceFailure:
		msg = "Changes are kept in memory but could not be saved. Retry or export them."
	case errors.ErrInternal:
		msg = "Something went wrong. Details are in the log."
	case errors.ErrMalformedStoredData:
		msg = "Stored notes could not be read; starting empty. The stored data is left untouched."
	}
	return &Notice{Kind: kind, Code: mErr.Code, Message: msg}
}

func (s *Session) emit() State {
	st := s.State()
	subs := append([]stateSubscriber(nil), s.subs...)
	for _, sub := range subs {
		sub.fn(st)
	}
	return st
}
