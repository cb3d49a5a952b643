// internal/rpc/server.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
)

const (
	DefaultQueue = "binance_leaderboard_crawl_rpc"
	transport    = "amqp"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Handler serves one raw control request.
type Handler interface {
	Handle(ctx context.Context, body []byte) control.Response
}

// Publisher sends replies. *amqp.Channel satisfies it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Options struct {
	URL      string
	Queue    string
	Prefetch int
	// MaxRetryInterval caps the reconnect backoff.
	MaxRetryInterval time.Duration
}

// Server consumes control requests from a queue and answers each one on its
// reply_to queue with the request's correlation id.
type Server struct {
	opts    Options
	handler Handler
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewServer(opts Options, handler Handler, collector *metrics.Collector, logger *zap.Logger) *Server {
	if opts.Queue == "" {
		opts.Queue = DefaultQueue
	}
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}
	if opts.MaxRetryInterval <= 0 {
		opts.MaxRetryInterval = 30 * time.Second
	}
	return &Server{
		opts:    opts,
		handler: handler,
		metrics: collector,
		logger:  logger.Named("rpc"),
	}
}

// Run keeps a consumer alive until ctx is cancelled, reconnecting with
// exponential backoff whenever the broker connection drops.
func (s *Server) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = s.opts.MaxRetryInterval

	for {
		started := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		// сессия продержалась дольше первой задержки - начинаем backoff заново
		if time.Since(started) > b.InitialInterval {
			b.Reset()
		}
		wait := b.NextBackOff()
		s.logger.Warn("RPC session ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Server) session(ctx context.Context) error {
	conn, err := amqp.Dial(s.opts.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(s.opts.Queue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", s.opts.Queue, err)
	}
	if err := ch.Qos(s.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, s.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.opts.Queue, err)
	}

	s.logger.Info("📡 RPC consumer ready", zap.String("queue", s.opts.Queue))
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	return s.serve(ctx, ch, deliveries, closed)
}

func (s *Server) serve(ctx context.Context, pub Publisher, deliveries <-chan amqp.Delivery, closed <-chan *amqp.Error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				return fmt.Errorf("connection closed: %w", amqpErr)
			}
			return errDeliveriesClosed
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			s.handle(ctx, pub, d)
		}
	}
}

func (s *Server) handle(ctx context.Context, pub Publisher, d amqp.Delivery) {
	resp := s.handler.Handle(ctx, d.Body)
	s.metrics.RecordControl(transport, resp.Success)

	body, err := control.Encode(resp)
	if err != nil {
		s.logger.Error("Failed to encode RPC reply", zap.Error(err))
	}

	if d.ReplyTo != "" {
		err := pub.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.CorrelationId,
			Body:          body,
		})
		if err != nil {
			s.logger.Error("Failed to publish RPC reply",
				zap.String("reply_to", d.ReplyTo),
				zap.String("correlation_id", d.CorrelationId),
				zap.Error(err))
		}
	} else {
		s.logger.Warn("RPC request without reply_to", zap.String("correlation_id", d.CorrelationId))
	}

	if err := d.Ack(false); err != nil {
		s.logger.Error("Failed to ack RPC request", zap.Error(err))
	}
}
