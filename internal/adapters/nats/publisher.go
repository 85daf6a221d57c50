package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/superres/internal/core/domain"
)

const (
	// StreamName holds every job event for replay to late subscribers.
	StreamName = "SUPERRES_JOBS"

	subjectPrefix = "superres.jobs."
)

// ProgressSubject is where stage updates for a job are published.
func ProgressSubject(jobID string) string {
	return subjectPrefix + jobID + ".progress"
}

// DoneSubject carries the final job document once a job finishes.
func DoneSubject(jobID string) string {
	return subjectPrefix + jobID + ".done"
}

// JobSubjects matches all events of one job, or of every job when jobID is empty.
func JobSubjects(jobID string) string {
	if jobID == "" {
		return subjectPrefix + ">"
	}
	return subjectPrefix + jobID + ".>"
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the job stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishProgress publishes a stage update.
func (p *Publisher) PublishProgress(ctx context.Context, ev *domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ProgressSubject(ev.JobID), data, nats.Context(ctx))
	return err
}

// PublishJobDone publishes the finished job.
func (p *Publisher) PublishJobDone(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(DoneSubject(job.ID), data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection with reconnects enabled.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("superres"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
