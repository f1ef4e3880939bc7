// Package usecase fans classified ticks out to in-process subscribers.
package usecase

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"spectator/internal/feature/candles/domain/entity"
	candleusecase "spectator/internal/feature/candles/usecase"
)

// DefaultMailboxSize is the number of ticks buffered per subscriber.
const DefaultMailboxSize = 64

// Handle identifies a registration.
type Handle = uuid.UUID

// Subscriber receives ticks one at a time, in publish order. A returned error
// is logged; it does not unregister the subscriber.
type Subscriber func(tick entity.MarketTick) error

type subscription struct {
	id      Handle
	fn      Subscriber
	mailbox chan entity.MarketTick
	quit    chan struct{}
}

// Broadcaster delivers every published tick to every registered subscriber.
// Each subscriber runs on its own goroutine behind a bounded mailbox, so a
// slow or failing subscriber only loses its own ticks.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[Handle]*subscription
	closed bool

	size   int
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ candleusecase.TickPublisher = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster. A non-positive mailboxSize falls back
// to DefaultMailboxSize and a nil logger to slog.Default().
func NewBroadcaster(mailboxSize int, logger *slog.Logger) *Broadcaster {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[Handle]*subscription),
		size:   mailboxSize,
		logger: logger,
	}
}

// Register starts delivering ticks to fn. After Close it returns uuid.Nil and
// fn is never called.
func (b *Broadcaster) Register(fn Subscriber) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.logger.Warn("register on closed broadcaster ignored")
		return uuid.Nil
	}

	s := &subscription{
		id:      uuid.New(),
		fn:      fn,
		mailbox: make(chan entity.MarketTick, b.size),
		quit:    make(chan struct{}),
	}
	b.subs[s.id] = s

	b.wg.Add(1)
	go b.run(s)

	b.logger.Debug("tick subscriber registered", "subscriber", s.id, "subscribers", len(b.subs))
	return s.id
}

// Unregister stops delivery to h. Ticks still queued for it are discarded.
// Unknown handles are ignored. It does not wait for an in-flight delivery,
// so it is safe to call from within the subscriber itself.
func (b *Broadcaster) Unregister(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[h]
	if !ok {
		return
	}
	delete(b.subs, h)
	close(s.quit)
	b.logger.Debug("tick subscriber unregistered", "subscriber", h, "subscribers", len(b.subs))
}

// Publish hands tick to every subscriber without blocking.
func (b *Broadcaster) Publish(tick entity.MarketTick) {
	b.mu.RLock()
	snapshot := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.RUnlock()

	for _, s := range snapshot {
		select {
		case s.mailbox <- tick:
		default:
			b.logger.Warn("subscriber mailbox full, dropping tick",
				"subscriber", s.id, "symbol", tick.Candle.Symbol, "time", tick.Candle.Time)
		}
	}
}

// Len returns the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters everyone and waits for in-flight deliveries to return.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for id, s := range b.subs {
			close(s.quit)
			delete(b.subs, id)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Broadcaster) run(s *subscription) {
	defer b.wg.Done()
	for {
		// Prefer quit so that an unregistered subscriber stops promptly.
		select {
		case <-s.quit:
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case tick := <-s.mailbox:
			if err := b.deliver(s, tick); err != nil {
				b.logger.Error("tick subscriber failed", "subscriber", s.id, "error", err)
			}
		}
	}
}

func (b *Broadcaster) deliver(s *subscription, tick entity.MarketTick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(tick)
}
