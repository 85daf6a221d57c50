package natsadapter

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewSubscriber creates a subscriber with its own connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeJob delivers the raw events of one job, starting from the first
// event still in the stream so late watchers see the whole history. With an
// empty jobID only new events of every job are delivered.
func (s *Subscriber) SubscribeJob(ctx context.Context, jobID string, handler func(data []byte)) (func(), error) {
	deliver := nats.DeliverAll()
	if jobID == "" {
		deliver = nats.DeliverNew()
	}

	sub, err := s.js.Subscribe(JobSubjects(jobID), func(msg *nats.Msg) {
		handler(msg.Data)
	},
		nats.BindStream(StreamName),
		nats.OrderedConsumer(),
		deliver,
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", JobSubjects(jobID), err)
	}

	stop := func() { _ = sub.Unsubscribe() }
	go func() {
		<-ctx.Done()
		stop()
	}()
	return stop, nil
}

// Close drains the connection.
func (s *Subscriber) Close() {
	_ = s.conn.Drain()
}
