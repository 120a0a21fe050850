package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/hostbot/internal/model"
	"github.com/capitalize-ai/hostbot/pkg/logger"
	"github.com/capitalize-ai/hostbot/pkg/metrics"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler produces the replies for one message.
type Handler interface {
	Handle(ctx context.Context, msg model.InboundMessage) ([]model.Reply, error)
}

// Sender delivers one reply to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply model.Reply) error
}

// TransportError reports a reply that could not be delivered.
type TransportError struct {
	ChatID int64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver to chat %d: %v", e.ChatID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type mailbox struct {
	queue []model.InboundMessage
}

// Dispatcher feeds messages to a Handler so that each user's messages are
// handled one at a time, in arrival order, while different users proceed in
// parallel. A user's worker goroutine exits once the mailbox is empty.
type Dispatcher struct {
	handler   Handler
	sender    Sender
	transport string
	timeout   time.Duration
	logger    *logger.Logger

	mu     sync.Mutex
	boxes  map[int64]*mailbox
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds the handling and delivery of a single message.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithTransport names the transport in metrics.
func WithTransport(name string) DispatcherOption {
	return func(disp *Dispatcher) { disp.transport = name }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(handler Handler, sender Sender, log *logger.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must not be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	d := &Dispatcher{
		handler:   handler,
		sender:    sender,
		transport: "telegram",
		timeout:   30 * time.Second,
		logger:    log,
		boxes:     make(map[int64]*mailbox),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Submit queues msg behind the user's earlier messages.
func (d *Dispatcher) Submit(msg model.InboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	mb, running := d.boxes[msg.UserID]
	if !running {
		mb = &mailbox{}
		d.boxes[msg.UserID] = mb
	}
	mb.queue = append(mb.queue, msg)

	if !running {
		d.wg.Add(1)
		go d.drain(msg.UserID, mb)
	}
	return nil
}

// Close stops accepting messages. Queued messages are still handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until every queued message has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(userID int64, mb *mailbox) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		if len(mb.queue) == 0 {
			delete(d.boxes, userID)
			d.mu.Unlock()
			return
		}
		msg := mb.queue[0]
		mb.queue = mb.queue[1:]
		d.mu.Unlock()

		d.process(msg)
	}
}

func (d *Dispatcher) process(msg model.InboundMessage) {
	log := d.logger.WithUser(msg.UserID, uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling message", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	replies, err := d.handler.Handle(ctx, msg)
	if err != nil {
		log.Error("failed to handle message", zap.Error(err))
	}

	for _, reply := range replies {
		if err := d.sender.Send(ctx, msg.ChatID, reply); err != nil {
			terr := &TransportError{ChatID: msg.ChatID, Err: err}
			metrics.TransportFailures.WithLabelValues(d.transport).Inc()
			log.Warn("failed to deliver reply", zap.Error(terr))
		}
	}
}
