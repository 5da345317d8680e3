// Package natsbus exposes the extension message contract and visit ingress
// over NATS, and publishes cleaning pass results.
//
// Subjects, relative to the configured prefix:
//
//	<prefix>.messages                      request/reply, Extension-Id header
//	<prefix>.history.visited               visit events
//	<prefix>.cleaning.<category>.finished  pass results
//
// Requests from an untrusted sender or with an unknown type get no reply,
// so the requester times out.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/bookmarkd/internal/browser"
	"github.com/fyrsmithlabs/bookmarkd/internal/cleaning"
	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	"github.com/fyrsmithlabs/bookmarkd/internal/logging"
	"github.com/fyrsmithlabs/bookmarkd/internal/messaging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// HeaderExtensionID carries the sender id of a request.
const HeaderExtensionID = "Extension-Id"

// queueGroup load-balances requests between daemon instances.
const queueGroup = "bookmarkd"

// MessageHandler handles extension messages. Implemented by messaging.Handler.
type MessageHandler interface {
	Handle(ctx context.Context, sender messaging.Sender, msg messaging.Message) (*messaging.Response, error)
}

// VisitRecorder stores a visit. Implemented by places.Store.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, v browser.Visit) error
}

// Bus binds the daemon to a NATS connection.
type Bus struct {
	nc      *nats.Conn
	prefix  string
	handler MessageHandler
	visits  VisitRecorder
	logger  *logging.Logger

	mu   sync.Mutex
	subs []*nats.Subscription

	// gate is held shared by running callbacks; Close takes it exclusively
	gate   sync.RWMutex
	closed bool
}

// New creates a Bus. visits may be nil, in which case visit events are not
// subscribed.
func New(nc *nats.Conn, prefix string, handler MessageHandler, visits VisitRecorder, logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	if prefix == "" {
		prefix = config.DefaultSubjectPrefix
	}
	return &Bus{
		nc:      nc,
		prefix:  prefix,
		handler: handler,
		visits:  visits,
		logger:  logger.Named("natsbus"),
	}
}

// Subject returns the full subject for name.
func (b *Bus) Subject(name string) string {
	return b.prefix + "." + name
}

// Start subscribes to the request and visit subjects. Callbacks run with
// ctx, which should live as long as the subscriptions.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) > 0 {
		return errors.New("natsbus: already started")
	}
	b.gate.Lock()
	b.closed = false
	b.gate.Unlock()

	sub, err := b.nc.QueueSubscribe(b.Subject("messages"), queueGroup, b.guard(func(m *nats.Msg) {
		b.handleRequest(ctx, m)
	}))
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.Subject("messages"), err)
	}
	b.subs = append(b.subs, sub)

	if b.visits != nil {
		sub, err = b.nc.QueueSubscribe(b.Subject("history.visited"), queueGroup, b.guard(func(m *nats.Msg) {
			b.handleVisit(ctx, m)
		}))
		if err != nil {
			b.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", b.Subject("history.visited"), err)
		}
		b.subs = append(b.subs, sub)
	}

	// make sure the server has the interest before callers publish
	if err := b.nc.Flush(); err != nil {
		b.unsubscribeLocked()
		return fmt.Errorf("flush subscriptions: %w", err)
	}

	b.logger.Info(ctx, "nats subscriptions started", zap.String("prefix", b.prefix))
	return nil
}

// Close removes the subscriptions and waits for running callbacks. Messages
// still queued are dropped. The connection stays open.
func (b *Bus) Close() error {
	b.gate.Lock()
	b.closed = true
	b.gate.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribeLocked()
}

func (b *Bus) guard(fn nats.MsgHandler) nats.MsgHandler {
	return func(m *nats.Msg) {
		b.gate.RLock()
		defer b.gate.RUnlock()
		if b.closed {
			return
		}
		fn(m)
	}
}

func (b *Bus) unsubscribeLocked() error {
	var errs []error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

func (b *Bus) handleRequest(ctx context.Context, m *nats.Msg) {
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	var msg messaging.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		b.logger.Warn(ctx, "dropping malformed message", zap.String("subject", m.Subject), zap.Error(err))
		return
	}

	var sender messaging.Sender
	if m.Header != nil {
		sender.ID = m.Header.Get(HeaderExtensionID)
	}

	resp, err := b.handler.Handle(ctx, sender, msg)
	if err != nil {
		// untrusted senders are already logged by the handler
		if !errors.Is(err, messaging.ErrUntrustedSender) {
			b.logger.Warn(ctx, "message not answered", zap.String("type", msg.Type), zap.Error(err))
		}
		return
	}
	if m.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error(ctx, "encoding response failed", zap.Error(err))
		return
	}
	if err := m.Respond(data); err != nil {
		b.logger.Warn(ctx, "sending response failed", zap.Error(err))
	}
}

func (b *Bus) handleVisit(ctx context.Context, m *nats.Msg) {
	var visit browser.Visit
	if err := json.Unmarshal(m.Data, &visit); err != nil {
		b.logger.Warn(ctx, "dropping malformed visit", zap.Error(err))
		return
	}
	if visit.URL == "" {
		b.logger.Debug(ctx, "dropping visit without url")
		return
	}
	if err := b.visits.RecordVisit(ctx, visit); err != nil {
		b.logger.Warn(ctx, "recording visit failed", zap.String("url", visit.URL), zap.Error(err))
	}
}

// PublishResult publishes a finished pass on
// <prefix>.cleaning.<category>.finished. It matches cleaning.Config.OnFinish.
func (b *Bus) PublishResult(ctx context.Context, res cleaning.Result) {
	subject := b.Subject("cleaning." + string(res.Category) + ".finished")
	data, err := json.Marshal(res)
	if err != nil {
		b.logger.Error(ctx, "encoding pass result failed", zap.Error(err))
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Warn(ctx, "publishing pass result failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Connect dials NATS with reconnect handling. The connection is retried in
// the background when the server is not reachable yet.
func Connect(cfg config.NATSConfig, logger *logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.Named("natsbus")
	ctx := context.Background()

	opts := []nats.Option{
		nats.Name("bookmarkd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn(ctx, "nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(ctx, "nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Token.IsSet() {
		opts = append(opts, nats.Token(cfg.Token.Value()))
		log.Debug(ctx, "using nats token auth", logging.Secret("token", cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	return nc, nil
}
