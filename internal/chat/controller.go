package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"coursegen/internal/gateway"
	"coursegen/internal/logx"
)

// DefaultStopDrainTimeout bounds how long a stopped stream may keep running.
const DefaultStopDrainTimeout = 10 * time.Second

var (
	// ErrNoChatID is returned by Stop before the server has named the generation.
	ErrNoChatID = errors.New("generation has no chat id yet")
	// ErrEmptyResponse settles streams that ended without a single chunk.
	ErrEmptyResponse = errors.New("generation returned an empty response")
	// ErrStopTimeout settles stopped streams that never reached their end.
	ErrStopTimeout = errors.New("generation stopped: stream did not terminate")
)

// Gateway is the subset of the backend client the controller drives
type Gateway interface {
	Generate(ctx context.Context, req gateway.GenerateRequest, callbacks gateway.StreamCallbacks) (string, error)
	Stop(ctx context.Context, chatID string) error
	FetchUserLogs(ctx context.Context, req gateway.UserLogRequest) ([]gateway.LogEntry, error)
}

// Request is everything a generation needs
type Request struct {
	Tab           Tab
	Query         string
	UserID        string
	SystemPrompt  string
	DefaultPrompt string
	SlugID        string
	ExtractedText string
	IsFileSingle  string
	StructureType string
	FilePaths     []string
	Kind          Kind
	Prompt        bool
	SelectedTitle string
}

func (r Request) kind() Kind {
	if r.Kind == "" {
		return KindTitleData
	}
	return r.Kind
}

func (r Request) wire() gateway.GenerateRequest {
	queryType := "false"
	if r.Prompt {
		queryType = "true"
	}
	return gateway.GenerateRequest{
		FilePaths:     r.FilePaths,
		UserQuery:     r.Query,
		UserID:        r.UserID,
		SystemPrompt:  r.SystemPrompt,
		DefaultPrompt: r.DefaultPrompt,
		SlugID:        r.SlugID,
		ExtractedText: r.ExtractedText,
		IsFileSingle:  r.IsFileSingle,
		StructureType: r.StructureType,
		ActionType:    string(r.kind()),
		Selected:      r.SelectedTitle,
		QueryType:     queryType,
	}
}

// LogQuery selects the server log to merge
type LogQuery struct {
	UserID      int64
	SlugID      string
	OutlineType string
}

// Callbacks observe a generation as it progresses
type Callbacks struct {
	OnTyping  func(bool)
	OnChunk   func(tab Tab, chunk string)
	OnSettled func(State)
}

// Option configures a Controller
type Option func(*Controller)

// WithStopDrainTimeout sets how long a stopped stream may keep running.
func WithStopDrainTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithCallbacks installs progress observers.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) {
		c.callbacks = cb
	}
}

// Controller drives generations against the gateway and records every
// transition on the session.
type Controller struct {
	gw           Gateway
	session      *Session
	drainTimeout time.Duration
	callbacks    Callbacks

	mu           sync.Mutex
	gen          uint64
	cancel       context.CancelFunc
	drainTimer   *time.Timer
	drainExpired bool
}

// NewController creates a controller bound to session.
func NewController(gw Gateway, session *Session, opts ...Option) *Controller {
	c := &Controller{
		gw:           gw,
		session:      session,
		drainTimeout: DefaultStopDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the controller mutates.
func (c *Controller) Session() *Session {
	return c.session
}

// Dispatch runs one generation to completion. On success the accumulated
// text is committed to the tab and global histories and returned as an
// Entry; on failure nothing is committed and the session carries the error.
func (c *Controller) Dispatch(ctx context.Context, req Request) (Entry, error) {
	if err := c.session.Begin(req.Tab); err != nil {
		return Entry{}, err
	}

	ctx = logx.ContextWithUser(logx.ContextWithTab(ctx, string(req.Tab)), req.UserID)
	log := pslog.Ctx(ctx).With("request_id", uuid.NewString())
	log.Info("chat.dispatch", "kind", req.kind(), "prompt", req.Prompt, "structure", req.StructureType)
	c.notifyTyping(true)

	streamCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.drainExpired = false
	if c.drainTimer != nil {
		c.drainTimer.Stop()
		c.drainTimer = nil
	}
	c.mu.Unlock()
	defer c.finish(gen, cancel)

	chunks := 0
	_, err := c.gw.Generate(streamCtx, req.wire(), gateway.StreamCallbacks{
		OnChatID: func(id string) {
			c.session.SetChatID(id)
			log = logx.WithChat(log, id)
			log.Debug("chat.chat_id")
		},
		OnChunk: func(chunk string) {
			if err := c.session.ApplyChunk(req.Tab, chunk); err != nil {
				log.Warn("chat.chunk_dropped", "err", err)
				return
			}
			chunks++
			if chunks == 1 {
				c.notifyTyping(false)
			}
			if c.callbacks.OnChunk != nil {
				c.callbacks.OnChunk(req.Tab, chunk)
			}
		},
	})

	if err != nil {
		if c.expired() {
			err = fmt.Errorf("%w within %s", ErrStopTimeout, c.drainTimeout)
		}
		return Entry{}, c.fail(log, err)
	}
	if chunks == 0 {
		return Entry{}, c.fail(log, ErrEmptyResponse)
	}

	entry, err := c.session.Succeed(Meta{
		UserQuery:     req.Query,
		Kind:          req.kind(),
		Prompt:        req.Prompt,
		SelectedTitle: req.SelectedTitle,
	})
	if err != nil {
		return Entry{}, c.fail(log, err)
	}
	log.Info("chat.settled", "phase", PhaseSucceeded, "chunks", chunks, "bytes", len(entry.Response))
	c.notifySettled()
	return entry, nil
}

func (c *Controller) fail(log pslog.Logger, err error) error {
	c.session.Fail(err.Error())
	log.Warn("chat.settled", "phase", PhaseFailed, "err", err)
	c.notifySettled()
	return err
}

// Stop asks the backend to halt the running generation. The stream keeps
// draining; if it has not ended within the drain timeout it is cancelled
// and the generation settles as failed.
func (c *Controller) Stop(ctx context.Context) error {
	if !c.session.InFlight() {
		return ErrNotInFlight
	}
	chatID := c.session.ChatID()
	if chatID == "" {
		return ErrNoChatID
	}
	log := logx.WithChat(pslog.Ctx(ctx), chatID)

	if err := c.gw.Stop(ctx, chatID); err != nil {
		c.session.StopRejected(err.Error())
		log.Warn("chat.stop_rejected", "err", err)
		return err
	}
	c.session.StopAcknowledged()
	c.notifyTyping(false)
	c.armDrain()
	log.Info("chat.stop_acknowledged", "drain_timeout", c.drainTimeout)
	return nil
}

// FetchLogs merges the server-side interaction log into the session and
// returns how many entries were new.
func (c *Controller) FetchLogs(ctx context.Context, q LogQuery) (int, error) {
	rows, err := c.gw.FetchUserLogs(ctx, gateway.UserLogRequest{
		SlugID:      q.SlugID,
		UserID:      q.UserID,
		OutlineType: q.OutlineType,
	})
	if err != nil {
		c.session.RecordError(err.Error())
		pslog.Ctx(ctx).Warn("chat.logs_failed", "err", err)
		return 0, err
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry(row))
	}
	added := c.session.MergeFetched(entries)
	pslog.Ctx(ctx).Debug("chat.logs_merged", "fetched", len(rows), "added", added)
	return added, nil
}

func (c *Controller) armDrain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil || c.drainTimer != nil {
		return
	}
	gen := c.gen
	c.drainTimer = time.AfterFunc(c.drainTimeout, func() {
		c.mu.Lock()
		if c.gen != gen || c.cancel == nil {
			c.mu.Unlock()
			return
		}
		c.drainExpired = true
		cancel := c.cancel
		c.mu.Unlock()
		cancel()
	})
}

func (c *Controller) expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainExpired
}

// finish releases the stream of generation gen. A newer generation started
// from a settle callback keeps its own cancel and drain timer.
func (c *Controller) finish(gen uint64, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.drainTimer != nil {
		c.drainTimer.Stop()
		c.drainTimer = nil
	}
	c.cancel = nil
}

func (c *Controller) notifyTyping(typing bool) {
	if c.callbacks.OnTyping != nil {
		c.callbacks.OnTyping(typing)
	}
}

func (c *Controller) notifySettled() {
	if c.callbacks.OnSettled != nil {
		c.callbacks.OnSettled(c.session.Snapshot())
	}
}
