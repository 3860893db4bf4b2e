package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultNotifyTimeout bounds a single feedback notification.
const DefaultNotifyTimeout = 30 * time.Second

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Store Store
	// Notifier is told about completed sessions. Optional.
	Notifier Notifier
	// Archiver stores final transcripts and turn audio. Optional.
	Archiver *Archiver
	Logger   *slog.Logger
	// Now overrides the clock in tests.
	Now           func() time.Time
	NotifyTimeout time.Duration
}

// Manager is the Session Lifecycle Manager. It is the only writer of
// session status and transcript.
type Manager struct {
	store    Store
	notifier Notifier
	archiver *Archiver
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration

	mu   sync.Mutex
	live map[string]*Handle

	// beginMu serializes activation so that only one attempt per user and
	// stage is active.
	beginMu sync.Mutex

	wg sync.WaitGroup
}

// NewManager returns a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Store == nil {
		panic("interview: manager requires a store")
	}
	m := &Manager{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		archiver: cfg.Archiver,
		logger:   cfg.Logger,
		now:      cfg.Now,
		timeout:  cfg.NotifyTimeout,
		live:     make(map[string]*Handle),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.timeout <= 0 {
		m.timeout = DefaultNotifyTimeout
	}
	return m
}

// Start cancels any active session of user at stage, then creates a new
// pending session. The session only becomes active on Handle.Begin.
func (m *Manager) Start(ctx context.Context, user string, stage Stage) (*Handle, error) {
	if err := m.cancelActive(ctx, user, stage, ""); err != nil {
		return nil, err
	}

	sess, err := m.store.CreateSession(ctx, stage, user)
	if err != nil {
		return nil, NewError(KindPersistence, OpCreate, err)
	}
	h := &Handle{
		m:       m,
		session: *sess.Clone(),
		done:    make(chan struct{}),
	}
	m.mu.Lock()
	m.live[sess.ID] = h
	m.mu.Unlock()
	m.logger.Debug("session created", "session_id", sess.ID, "stage", stage)
	return h, nil
}

// Complete ends an active session: it persists the final transcript and
// duration, archives the transcript, notifies the feedback collaborator
// and releases every tracked resource. Persistence, archive and notifier
// failures are logged only. Completing a session that is not active
// returns ErrInactive.
func (m *Manager) Complete(ctx context.Context, h *Handle) (*Session, error) {
	now := m.now()
	h.mu.Lock()
	if h.session.Status != StatusActive || h.cleaned {
		h.mu.Unlock()
		return nil, ErrInactive
	}
	h.session.Status = StatusCompleted
	h.session.CompletedAt = now
	h.session.DurationSeconds = int(now.Sub(h.session.CreatedAt) / time.Second)
	final := h.session.Clone()
	turns := h.turnAudio
	h.turnAudio = nil
	h.mu.Unlock()

	h.release()

	status := StatusCompleted
	h.persistMu.Lock()
	err := m.store.UpdateSession(ctx, final.ID, Update{
		Status:          &status,
		Transcript:      final.Transcript,
		DurationSeconds: &final.DurationSeconds,
		CompletedAt:     &final.CompletedAt,
	})
	h.persistMu.Unlock()
	if err != nil {
		m.logger.Warn("persist completed session", "session_id", final.ID, "err", NewError(KindPersistence, "complete", err))
	}

	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, final, turns); err != nil {
			m.logger.Warn("archive session", "session_id", final.ID, "err", NewError(KindPersistence, "archive", err))
		}
	}

	if m.notifier != nil {
		m.wg.Add(1)
		go m.notify(ctx, final.ID)
	}

	m.forget(final.ID)
	m.logger.Info("session completed", "session_id", final.ID, "stage", final.Stage,
		"duration_s", final.DurationSeconds, "utterances", len(final.Transcript))
	return final, nil
}

// Cancel marks a pending or active session cancelled and releases its
// resources. Cancelling a finished session only releases resources.
func (m *Manager) Cancel(ctx context.Context, h *Handle) {
	if h.markCancelled(true) {
		if err := m.markCancelled(ctx, h.ID()); err != nil {
			m.logger.Warn("persist cancelled session", "session_id", h.ID(), "err", NewError(KindPersistence, "cancel", err))
		}
		m.logger.Info("session cancelled", "session_id", h.ID())
	}
	h.Cleanup()
}

// Wait blocks until in-flight feedback notifications have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) notify(ctx context.Context, id string) {
	defer m.wg.Done()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()
	if err := m.notifier.NotifyCompleted(ctx, id); err != nil {
		m.logger.Warn("feedback notification failed", "session_id", id, "err", err)
		return
	}
	m.logger.Debug("feedback notified", "session_id", id)
}

// cancelActive cancels every active session of user at stage except the
// one with id except.
func (m *Manager) cancelActive(ctx context.Context, user string, stage Stage, except string) error {
	stale, err := m.store.ListSessions(ctx, Filter{User: user, Stage: stage, Status: StatusActive})
	if err != nil {
		return NewError(KindPersistence, OpCreate, err)
	}
	for _, s := range stale {
		if s.ID == except {
			continue
		}
		if h := m.handle(s.ID); h != nil {
			m.logger.Info("cancelling previous attempt", "session_id", s.ID, "stage", stage)
			m.Cancel(ctx, h)
			continue
		}
		if err := m.markCancelled(ctx, s.ID); err != nil {
			return NewError(KindPersistence, OpCreate, fmt.Errorf("cancel %s: %w", s.ID, err))
		}
		m.logger.Info("cancelled stale session", "session_id", s.ID, "stage", stage)
	}
	return nil
}

func (m *Manager) markCancelled(ctx context.Context, id string) error {
	status := StatusCancelled
	now := m.now()
	return m.store.UpdateSession(ctx, id, Update{Status: &status, CompletedAt: &now})
}

func (m *Manager) handle(id string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[id]
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
}

// CloseFunc adapts a function to io.Closer for Handle.Track.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

type tracked struct {
	name   string
	closer io.Closer
}

// Handle is a live session. All methods are safe for concurrent use, and
// Active is immediately consistent with every status change.
type Handle struct {
	m *Manager

	mu        sync.Mutex
	session   Session
	began     time.Time
	closers   []tracked
	turnAudio [][]byte
	cleaned   bool

	// persistMu orders transcript writes so stored snapshots only grow.
	persistMu sync.Mutex

	done chan struct{}
}

// ID returns the session id.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.ID
}

// Stage returns the session stage.
func (h *Handle) Stage() Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Stage
}

// Status returns the current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Status
}

// CreatedAt returns the session creation time.
func (h *Handle) CreatedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.CreatedAt
}

// Active reports whether the session is active and not cleaned up. Every
// I/O callback must check it before acting.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Status == StatusActive && !h.cleaned
}

// Begin marks a pending session active. It is called when the candidate
// explicitly begins, never implicitly. An attempt of the same user and
// stage that became active since Start is cancelled first.
func (h *Handle) Begin(ctx context.Context) error {
	h.mu.Lock()
	if h.session.Status != StatusPending || h.cleaned {
		st := h.session.Status
		h.mu.Unlock()
		return fmt.Errorf("interview: begin %s session: %w", st, ErrInactive)
	}
	id, user, stage := h.session.ID, h.session.User, h.session.Stage
	h.mu.Unlock()

	h.m.beginMu.Lock()
	defer h.m.beginMu.Unlock()
	if err := h.m.cancelActive(ctx, user, stage, id); err != nil {
		return err
	}

	status := StatusActive
	if err := h.m.store.UpdateSession(ctx, h.ID(), Update{Status: &status}); err != nil {
		return NewError(KindPersistence, OpCreate, err)
	}

	h.mu.Lock()
	if h.cleaned || h.session.Status != StatusPending {
		// Cancelled or cleaned up while the store was being updated.
		h.session.Status = StatusCancelled
		if h.session.CompletedAt.IsZero() {
			h.session.CompletedAt = h.m.now()
		}
		h.mu.Unlock()
		if err := h.m.markCancelled(ctx, h.session.ID); err != nil {
			h.m.logger.Warn("persist cancelled session", "session_id", h.session.ID, "err", NewError(KindPersistence, "begin", err))
		}
		return ErrInactive
	}
	h.session.Status = StatusActive
	h.began = h.m.now()
	h.mu.Unlock()
	return nil
}

// Append adds a finalized utterance to the transcript and persists the new
// snapshot best-effort. A zero Offset is filled from the time since Begin.
// Appending to an inactive session returns ErrInactive.
func (h *Handle) Append(ctx context.Context, u Utterance) error {
	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	h.mu.Lock()
	if h.session.Status != StatusActive || h.cleaned {
		h.mu.Unlock()
		return ErrInactive
	}
	if u.Offset == 0 {
		u.Offset = h.m.now().Sub(h.began)
	}
	h.session.Transcript = append(h.session.Transcript, u)
	snapshot := append([]Utterance(nil), h.session.Transcript...)
	id := h.session.ID
	h.mu.Unlock()

	if err := h.m.store.UpdateSession(ctx, id, Update{Transcript: snapshot}); err != nil {
		h.m.logger.Warn("persist transcript", "session_id", id, "len", len(snapshot),
			"err", NewError(KindPersistence, "append", err))
	}
	return nil
}

// Transcript returns a copy of the transcript.
func (h *Handle) Transcript() []Utterance {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Utterance(nil), h.session.Transcript...)
}

// Session returns a snapshot of the session record.
func (h *Handle) Session() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Clone()
}

// AddTurnAudio keeps one turn of candidate audio for the archive.
func (h *Handle) AddTurnAudio(audio []byte) {
	if len(audio) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.cleaned {
		h.turnAudio = append(h.turnAudio, audio)
	}
}

// Track registers a resource to close on cleanup. Resources close in
// reverse order of registration. A resource tracked after cleanup is closed
// immediately and Track returns false.
func (h *Handle) Track(name string, c io.Closer) bool {
	h.mu.Lock()
	if !h.cleaned {
		h.closers = append(h.closers, tracked{name: name, closer: c})
		h.mu.Unlock()
		return true
	}
	h.mu.Unlock()
	if err := c.Close(); err != nil {
		h.m.logger.Warn("close late resource", "resource", name, "err", err)
	}
	return false
}

// Cleanup releases every tracked resource and, if the session is still
// active, marks it cancelled. It may be called any number of times from
// any goroutine; later calls wait for the first to finish.
func (h *Handle) Cleanup() {
	if !h.markCancelled(false) {
		h.release()
		return
	}
	h.release()
	ctx, cancel := context.WithTimeout(context.Background(), h.m.timeout)
	defer cancel()
	if err := h.m.markCancelled(ctx, h.ID()); err != nil {
		h.m.logger.Warn("persist cancelled session", "session_id", h.ID(), "err", NewError(KindPersistence, "cleanup", err))
	}
	h.m.logger.Info("session cancelled by cleanup", "session_id", h.ID())
}

// Done is closed once cleanup has released every resource.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// markCancelled moves the session to cancelled. Pending sessions move only
// when includePending is set. It reports whether the status changed.
func (h *Handle) markCancelled(includePending bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cleaned {
		return false
	}
	switch h.session.Status {
	case StatusActive:
	case StatusPending:
		if !includePending {
			return false
		}
	default:
		return false
	}
	h.session.Status = StatusCancelled
	h.session.CompletedAt = h.m.now()
	return true
}

// release closes tracked resources exactly once. Concurrent callers block
// until the first has finished.
func (h *Handle) release() {
	h.mu.Lock()
	if h.cleaned {
		h.mu.Unlock()
		<-h.done
		return
	}
	h.cleaned = true
	closers := h.closers
	h.closers = nil
	id := h.session.ID
	h.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.m.logger.Warn("cleanup", "session_id", id, "err", err)
	}
	h.m.forget(id)
	close(h.done)
}
