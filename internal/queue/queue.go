// Package queue runs ranking jobs delivered over RabbitMQ. Jobs and results
// travel as protobuf-encoded Struct documents; each result is published to
// the job's reply-to queue, or to the configured result queue when none is
// given, carrying the job's correlation ID.
package queue

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/papapumpkin/linkrank/internal/config"
	"github.com/papapumpkin/linkrank/internal/engine"
	"github.com/papapumpkin/linkrank/internal/report"
	"github.com/papapumpkin/linkrank/internal/wire"
)

// Channel is the subset of *amqp.Channel the worker uses.
type Channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Saver persists finished runs.
type Saver interface {
	Save(ctx context.Context, r *report.Report) error
}

// Message is the body of a job delivery.
type Message struct {
	engine.Job
	Save bool `json:"save"`
}

// Result is the body published for every handled job.
type Result struct {
	JobID  string         `json:"job_id"`
	Report *report.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Connect dials RabbitMQ, opens a channel, and declares the job and result
// queues with the configured prefetch.
func Connect(cfg config.QueueConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("queue: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("queue: open channel: %w", err)
	}
	for _, name := range []string{cfg.JobQueue, cfg.ResultQueue} {
		if _, err := ch.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("queue: declare %s: %w", name, err)
		}
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("queue: set prefetch: %w", err)
	}
	return conn, ch, nil
}

// Worker consumes jobs from one queue.
type Worker struct {
	ch          Channel
	jobQueue    string
	resultQueue string
	defaults    engine.Request
	limits      engine.Limits
	history     Saver
	log         logrus.FieldLogger
}

// NewWorker builds a worker. Jobs exceeding limits fail without running.
// history may be nil, in which case jobs asking to be saved fail.
func NewWorker(ch Channel, cfg config.QueueConfig, defaults engine.Request, limits engine.Limits, history Saver, log logrus.FieldLogger) *Worker {
	return &Worker{
		ch:          ch,
		jobQueue:    cfg.JobQueue,
		resultQueue: cfg.ResultQueue,
		defaults:    defaults,
		limits:      limits,
		history:     history,
		log:         log.WithField("queue", cfg.JobQueue),
	}
}

// Run consumes jobs until ctx is done or the delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.ch.Consume(
		w.jobQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("queue: consume %s: %w", w.jobQueue, err)
	}
	w.log.Info("waiting for jobs")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("queue: delivery channel closed")
			}
			w.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery. Undecodable bodies are rejected without
// requeue. Ranking failures are reported in the Result and acked. Only a
// failed publish requeues the job.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) {
	log := w.log.WithField("job", jobID(d))

	var msg Message
	msg.Request = w.defaults
	if err := wire.Unmarshal(d.Body, &msg); err != nil {
		log.WithError(err).Warn("rejecting malformed job")
		if err := d.Reject(false); err != nil {
			log.WithError(err).Error("reject failed")
		}
		return
	}

	res := Result{JobID: jobID(d)}
	rep, err := w.execute(ctx, msg)
	if err != nil {
		log.WithError(err).Warn("job failed")
		res.Error = err.Error()
	} else {
		log.WithFields(logrus.Fields{"pages": rep.Pages, "run": rep.RunID}).Info("job done")
		res.Report = rep
	}

	if err := w.publish(ctx, d, res); err != nil {
		log.WithError(err).Error("publish result failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.WithError(err).Error("nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("ack failed")
	}
}

func (w *Worker) execute(ctx context.Context, msg Message) (*report.Report, error) {
	if err := w.limits.Check(msg.Request); err != nil {
		return nil, err
	}
	if msg.Save && w.history == nil {
		return nil, errors.New("run history is disabled")
	}
	rep, err := msg.Execute(ctx, engine.Hooks{})
	if err != nil {
		return nil, err
	}
	if msg.Save {
		if err := w.history.Save(ctx, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func (w *Worker) publish(ctx context.Context, d amqp.Delivery, res Result) error {
	body, err := wire.Marshal(res)
	if err != nil {
		return err
	}
	key := d.ReplyTo
	if key == "" {
		key = w.resultQueue
	}
	return w.ch.PublishWithContext(ctx,
		"",    // exchange
		key,   // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   wire.ContentType,
			CorrelationId: res.JobID,
			Body:          body,
		})
}

// Submit publishes a job to queue tagged with id, the correlation ID its
// result will carry. A non-empty replyTo routes the result there instead of
// the worker's result queue.
func Submit(ctx context.Context, ch Channel, queue, replyTo, id string, msg Message) error {
	body, err := wire.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   wire.ContentType,
		CorrelationId: id,
		MessageId:     id,
		ReplyTo:       replyTo,
		Body:          body,
	}); err != nil {
		return fmt.Errorf("queue: submit %s: %w", id, err)
	}
	return nil
}

// ReplyQueue declares a private, server-named queue that lives as long as
// ch and returns its name.
func ReplyQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("queue: declare reply queue: %w", err)
	}
	return q.Name, nil
}

// Await consumes replyQueue until the result for job id arrives. Results
// for other jobs are skipped.
func Await(ctx context.Context, ch Channel, replyQueue, id string) (Result, error) {
	msgs, err := ch.Consume(
		replyQueue, // queue
		"",         // consumer
		true,       // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return Result{}, fmt.Errorf("queue: consume %s: %w", replyQueue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return Result{}, errors.New("queue: delivery channel closed")
			}
			if d.CorrelationId != id {
				continue
			}
			return DecodeResult(d.Body)
		}
	}
}

// DecodeResult decodes a result delivery body.
func DecodeResult(body []byte) (Result, error) {
	var res Result
	if err := wire.Unmarshal(body, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func jobID(d amqp.Delivery) string {
	if d.CorrelationId != "" {
		return d.CorrelationId
	}
	return d.MessageId
}
