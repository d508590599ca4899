package chatsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/domain"
	"github.com/Roger-Hamaguchi/n8n-chatbot-scheduler/internal/metrics"
)

// DefaultPollInterval matches the backend's expected polling cadence
const DefaultPollInterval = 5 * time.Second

// PollState is the state of the poll loop
type PollState int

const (
	// StateIdle not started, or waiting for the initial history load
	StateIdle PollState = iota
	// StatePolling recurring fetch active
	StatePolling
	// StateStopped cancelled; results still in flight are discarded
	StateStopped
)

func (s PollState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ErrPollerStopped is returned by Start after Stop
var ErrPollerStopped = errors.New("poller stopped")

// Poller periodically pulls new messages and feeds them into the timeline
type Poller struct {
	transport domain.ChatTransport
	timeline  *Timeline
	cursor    *Cursor
	userID    string
	interval  time.Duration
	onMerge   func(MergeResult)
	metrics   *metrics.Collector
	logger    *slog.Logger

	// mu guards the state and serializes the apply step against Stop
	mu       sync.Mutex
	state    PollState
	started  bool
	cancel   context.CancelFunc
	lastSync time.Time

	trigger   chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

// PollerConfig wires the collaborators of a Poller
type PollerConfig struct {
	Transport domain.ChatTransport
	Timeline  *Timeline
	Cursor    *Cursor
	UserID    string
	Interval  time.Duration
	// OnMerge, when set, is called after each merge that changed the timeline
	OnMerge func(MergeResult)
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// NewPoller creates a poller in the idle state
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cursor := cfg.Cursor
	if cursor == nil {
		cursor = &Cursor{}
	}
	return &Poller{
		transport: cfg.Transport,
		timeline:  cfg.Timeline,
		cursor:    cursor,
		userID:    cfg.UserID,
		interval:  interval,
		onMerge:   cfg.OnMerge,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "poller", "user_id", cfg.UserID),
		state:     StateIdle,
		trigger:   make(chan struct{}, 1),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the loop: one history load, then a fetch every interval.
// The loop ends when ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopped {
		return ErrPollerStopped
	}
	if p.started {
		return errors.New("poller already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	go p.run(loopCtx)
	return nil
}

// Stop cancels the loop. Once it returns, no further timeline mutation happens
// from this poller, even if a fetch started earlier completes later.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	cancel := p.cancel
	started := p.started
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !started {
		p.markReady()
		close(p.done)
	}
	p.logger.Debug("poller stopped")
}

// Done is closed when the loop goroutine has exited
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Ready is closed once the history load has been attempted, or the poller stopped
func (p *Poller) Ready() <-chan struct{} {
	return p.ready
}

func (p *Poller) markReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// State returns the current state
func (p *Poller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastSync returns when a fetch last succeeded (zero if never)
func (p *Poller) LastSync() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSync
}

// PollNow requests an out-of-schedule fetch. It never blocks; requests coalesce.
func (p *Poller) PollNow() {
	if p.State() != StatePolling {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	defer p.markReady()
	defer func() {
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
	}()

	// History load: success or failure, it unblocks polling
	p.tick(ctx)

	p.mu.Lock()
	if p.state == StateIdle {
		p.state = StatePolling
	}
	p.mu.Unlock()
	p.markReady()
	p.logger.Debug("polling started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		case <-p.trigger:
			p.tick(ctx)
		}
	}
}

// tick performs one fetch and applies it
func (p *Poller) tick(ctx context.Context) {
	if p.State() == StateStopped || ctx.Err() != nil {
		return
	}

	cursor := p.cursor.Get()
	page := p.transport.FetchPage(ctx, p.userID, cursor)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopped || ctx.Err() != nil {
		p.metrics.ObservePoll(metrics.PollDiscarded)
		p.logger.Debug("discarding fetch result after stop", "items", len(page.Items))
		return
	}

	if page.Degraded {
		p.metrics.ObservePoll(metrics.PollDegraded)
		return
	}

	if p.cursor.Advance(page.NextCursor) {
		p.logger.Debug("cursor advanced", "cursor", page.NextCursor)
	}
	p.lastSync = time.Now()
	p.metrics.ObservePoll(metrics.PollOK)

	if len(page.Items) == 0 {
		return
	}

	res := p.timeline.Merge(page.Items)
	p.metrics.ObserveMerge(len(res.Added), res.Reconciled, p.timeline.Len())
	if len(res.Added) > 0 {
		p.logger.Debug("new messages merged",
			"added", len(res.Added),
			"reconciled", res.Reconciled,
			"skipped", res.Skipped,
		)
	}
	if p.onMerge != nil && (len(res.Added) > 0 || res.Reconciled > 0) {
		p.onMerge(res)
	}
}
