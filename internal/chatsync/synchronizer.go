package chatsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lostfound-go-api/internal/dto"
)

const (
	defaultEventBuffer = 64
	localIDPrefix      = "local-"
)

var (
	// ErrClosed is returned for sends after Close.
	ErrClosed = errors.New("chat synchronizer closed")
	// ErrEmptyText rejects blank messages before they reach the timeline.
	ErrEmptyText = errors.New("message text is empty")
	// ErrUnknownEntry indicates the local id is not on the timeline.
	ErrUnknownEntry = errors.New("timeline entry not found")
	// ErrNotRetryable indicates the entry is not in the failed state.
	ErrNotRetryable = errors.New("timeline entry is not failed")
	// ErrRejected indicates the store refused the entry for good.
	ErrRejected = errors.New("timeline entry was rejected")
)

// MessageStore persists messages and returns the full history of a thread.
type MessageStore interface {
	Send(ctx context.Context, threadID, senderID string, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error)
	History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.ChatMessageResponse, error)
}

// PushChannel delivers newly persisted messages of a thread at least once.
type PushChannel interface {
	Subscribe(threadID string) (<-chan dto.ChatMessageResponse, func())
}

// EventKind describes a timeline change.
type EventKind string

const (
	EventUpsert EventKind = "upsert"
	EventRemove EventKind = "remove"
)

// Event notifies observers about a timeline change.
type Event struct {
	Kind  EventKind `json:"type"`
	Entry Entry     `json:"entry"`
}

// Config wires a Synchronizer to one thread.
type Config struct {
	ThreadID          string
	UserID            string
	Store             MessageStore
	Push              PushChannel
	ReconcileInterval time.Duration
	EventBuffer       int
	Logger            zerolog.Logger
	// Retryable classifies store errors. Errors it rejects mark the entry rejected instead
	// of failed. When nil every error is retryable.
	Retryable func(error) bool
	// Now overrides the local clock used for optimistic timestamps.
	Now func() time.Time
}

// Synchronizer keeps one thread's timeline consistent across optimistic sends, push
// deliveries and full reconciliation.
type Synchronizer struct {
	threadID  string
	userID    string
	store     MessageStore
	push      PushChannel
	interval  time.Duration
	logger    zerolog.Logger
	retryable func(error) bool
	now       func() time.Time
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
	sends     sync.WaitGroup

	mu       sync.Mutex
	timeline Timeline
	payloads map[string]dto.ChatSendRequest
}

// New validates cfg and builds a synchronizer.
func New(cfg Config) (*Synchronizer, error) {
	if strings.TrimSpace(cfg.ThreadID) == "" || strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("thread id and user id are required")
	}
	if cfg.Store == nil {
		return nil, errors.New("message store is required")
	}

	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	return &Synchronizer{
		threadID:  cfg.ThreadID,
		userID:    cfg.UserID,
		store:     cfg.Store,
		push:      cfg.Push,
		interval:  cfg.ReconcileInterval,
		logger:    cfg.Logger.With().Str("component", "chat_sync").Str("thread_id", cfg.ThreadID).Logger(),
		retryable: retryable,
		now:       now,
		events:    make(chan Event, buffer),
		closed:    make(chan struct{}),
		payloads:  make(map[string]dto.ChatSendRequest),
	}, nil
}

// Events streams timeline changes. Events are dropped when the buffer is full; Snapshot
// stays authoritative.
func (s *Synchronizer) Events() <-chan Event {
	return s.events
}

// Done is closed once Close has been called.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.closed
}

// Snapshot returns the current timeline.
func (s *Synchronizer) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Entries()
}

// Send appends an optimistic pending entry and persists it in the background. The
// background write is detached from ctx cancellation and from Close.
func (s *Synchronizer) Send(ctx context.Context, payload dto.ChatSendRequest) (Entry, error) {
	select {
	case <-s.closed:
		return Entry{}, ErrClosed
	default:
	}

	payload.Content = strings.TrimSpace(payload.Content)
	if payload.Content == "" {
		return Entry{}, ErrEmptyText
	}

	localID := strings.TrimSpace(payload.LocalID)
	switch {
	case localID == "":
		localID = localIDPrefix + uuid.NewString()
	case !strings.HasPrefix(localID, localIDPrefix):
		localID = localIDPrefix + localID
	}
	payload.LocalID = localID

	entry := Entry{
		State:   StatePending,
		LocalID: localID,
		Message: dto.ChatMessageResponse{
			ThreadID:  s.threadID,
			SenderID:  s.userID,
			Content:   payload.Content,
			ImageURL:  payload.ImageURL,
			CreatedAt: s.now().UTC(),
		},
	}

	s.mu.Lock()
	s.payloads[localID] = payload
	s.upsertLocked(entry)
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx), localID, payload)

	return entry, nil
}

// Retry re-sends a failed entry under its original local id. Rejected entries are refused.
func (s *Synchronizer) Retry(ctx context.Context, localID string) (Entry, error) {
	s.mu.Lock()
	entry, ok := s.timeline.Find(localID)
	if ok && entry.State == StateRejected {
		s.mu.Unlock()
		return Entry{}, ErrRejected
	}
	payload, hasPayload := s.payloads[localID]
	if !ok || !hasPayload {
		s.mu.Unlock()
		return Entry{}, ErrUnknownEntry
	}
	if entry.State != StateFailed {
		s.mu.Unlock()
		return Entry{}, ErrNotRetryable
	}

	entry.State = StatePending
	entry.Error = ""
	s.upsertLocked(entry)
	s.mu.Unlock()

	s.persist(context.WithoutCancel(ctx), localID, payload)

	return entry, nil
}

// Reconcile merges the complete persisted history into the timeline.
func (s *Synchronizer) Reconcile(ctx context.Context) error {
	messages, err := s.store.History(ctx, dto.ChatHistoryQuery{ThreadID: s.threadID, UserID: s.userID})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		s.mergeLocked(message)
	}
	return nil
}

// Apply merges one pushed message. Replays leave the timeline unchanged.
func (s *Synchronizer) Apply(message dto.ChatMessageResponse) bool {
	if message.ID == "" || (message.ThreadID != "" && message.ThreadID != s.threadID) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(message)
}

// Run consumes push deliveries and reconciles on start and every ReconcileInterval until
// ctx is cancelled or Close is called.
func (s *Synchronizer) Run(ctx context.Context) error {
	var pushed <-chan dto.ChatMessageResponse
	if s.push != nil {
		ch, unsubscribe := s.push.Subscribe(s.threadID)
		defer unsubscribe()
		pushed = ch
	}

	if err := s.Reconcile(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial reconciliation failed")
	}

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		case message, ok := <-pushed:
			if !ok {
				pushed = nil
				continue
			}
			s.Apply(message)
		case <-tick:
			if err := s.Reconcile(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("periodic reconciliation failed")
			}
		}
	}
}

// Close stops push delivery. In-flight sends still complete.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}

// Wait blocks until every in-flight send has finished.
func (s *Synchronizer) Wait() {
	s.sends.Wait()
}

func (s *Synchronizer) persist(ctx context.Context, localID string, payload dto.ChatSendRequest) {
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()

		message, err := s.store.Send(ctx, s.threadID, s.userID, payload)

		s.mu.Lock()
		defer s.mu.Unlock()

		if err != nil {
			state := StateFailed
			if !s.retryable(err) {
				state = StateRejected
				delete(s.payloads, localID)
			}
			s.logger.Warn().Err(err).Str("local_id", localID).Str("state", string(state)).Msg("message persistence failed")
			if entry, ok := s.timeline.Find(localID); ok {
				entry.State = state
				entry.Error = err.Error()
				s.upsertLocked(entry)
			}
			return
		}

		message.LocalID = localID
		s.mergeLocked(message)
	}()
}

// mergeLocked applies a persisted message. When it carries a local id of ours the
// optimistic entry is swapped for the confirmed one; a push may get there before the
// persist goroutine does.
func (s *Synchronizer) mergeLocked(message dto.ChatMessageResponse) bool {
	if message.LocalID != "" && message.SenderID == s.userID {
		if pending, ok := s.timeline.Find(message.LocalID); ok && pending.State != StateConfirmed {
			delete(s.payloads, message.LocalID)
			s.timeline.Remove(message.LocalID)
			s.emit(Event{Kind: EventRemove, Entry: pending})
		}
	} else {
		message.LocalID = ""
	}
	if !s.timeline.Merge(message) {
		return false
	}
	entry, _ := s.timeline.Find(message.ID)
	s.emit(Event{Kind: EventUpsert, Entry: entry})
	return true
}

func (s *Synchronizer) upsertLocked(entry Entry) {
	if s.timeline.Upsert(entry) {
		s.emit(Event{Kind: EventUpsert, Entry: entry})
	}
}

func (s *Synchronizer) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug().Str("kind", string(event.Kind)).Msg("dropping timeline event for slow observer")
	}
}
