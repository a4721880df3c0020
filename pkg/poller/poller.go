// Package poller implements the client side of the incremental message
// protocol: keep the highest seen message id and repeatedly ask the server
// for everything newer. The fetch itself is injected so the poller can sit
// on top of any transport.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Message is the minimal shape the poller needs from a fetched message.
type Message struct {
	ID      uint
	RoomID  uint
	Payload interface{}
}

// FetchFunc retrieves all messages in a room with an id greater than sinceID,
// ordered ascending.
type FetchFunc func(ctx context.Context, roomID uint, sinceID uint) ([]Message, error)

// Handler receives each new message exactly once, in id order.
type Handler func(Message)

// ErrNotJoined is returned when polling is started without a room.
var ErrNotJoined = errors.New("poller: no room joined")

// DefaultInterval is the pause between poll rounds.
const DefaultInterval = 3 * time.Second

// Poller tracks a cursor for one room and delivers newly arrived messages to
// a handler. The cursor never moves backwards, and ids already delivered are
// never delivered again.
type Poller struct {
	fetch    FetchFunc
	handler  Handler
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	roomID  uint
	cursor  uint
	seen    map[uint]struct{}
	polling bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option customises a Poller.
type Option func(*Poller)

// WithInterval overrides the poll interval.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithLogger attaches a logger for fetch failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New constructs an idle poller.
func New(fetch FetchFunc, handler Handler, opts ...Option) *Poller {
	p := &Poller{
		fetch:    fetch,
		handler:  handler,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
		seen:     make(map[uint]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Join switches the poller to a room. Any previous polling loop stops and
// the cursor resets, so the next Start replays the room from the beginning.
func (p *Poller) Join(roomID uint) {
	p.stopLocked()

	p.mu.Lock()
	p.roomID = roomID
	p.cursor = 0
	p.seen = make(map[uint]struct{})
	p.mu.Unlock()
}

// Start begins the polling loop. It performs one immediate poll, then polls
// every interval until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.roomID == 0 {
		p.mu.Unlock()
		return ErrNotJoined
	}
	if p.polling {
		p.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.polling = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			p.mu.Lock()
			p.polling = false
			p.mu.Unlock()
		}()

		p.poll(loopCtx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.poll(loopCtx)
			}
		}
	}()

	return nil
}

// Stop halts the polling loop and waits for it to exit. The cursor is kept,
// so a later Start resumes where the poller left off.
func (p *Poller) Stop() {
	p.stopLocked()
}

// Cursor returns the highest message id delivered so far.
func (p *Poller) Cursor() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Polling reports whether the loop is currently running.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polling
}

func (p *Poller) stopLocked() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	roomID := p.roomID
	cursor := p.cursor
	p.mu.Unlock()

	messages, err := p.fetch(ctx, roomID, cursor)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.Warn().Err(err).Uint("room_id", roomID).Msg("poll fetch failed")
		}
		return
	}

	for _, message := range messages {
		p.mu.Lock()
		if _, delivered := p.seen[message.ID]; delivered {
			p.mu.Unlock()
			continue
		}
		p.seen[message.ID] = struct{}{}
		if message.ID > p.cursor {
			p.cursor = message.ID
		}
		p.mu.Unlock()

		p.handler(message)
	}
}
