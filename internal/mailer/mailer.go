package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/innovation-portal/internal"
	"github.com/frahmantamala/innovation-portal/internal/obs"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	ErrQueueFull = errors.New("mail queue is full")
	ErrClosed    = errors.New("mail dispatcher is shut down")
)

const sendTimeout = 30 * time.Second

type job struct {
	msg      Message
	queuedAt time.Time
}

type worker struct {
	id      int
	pool    chan chan job
	jobs    chan job
	logger  *slog.Logger
	deliver func(job)
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			w.pool <- w.jobs

			select {
			case j := <-w.jobs:
				w.deliver(j)
			case <-ctx.Done():
				w.logger.Debug("mail worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

type Config struct {
	MaxWorkers int
	QueueSize  int
}

// Dispatcher delivers messages asynchronously through a bounded worker pool.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger

	queue      chan job
	pool       chan chan job
	maxWorkers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewDispatcher(sender Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:     sender,
		logger:     logger,
		queue:      make(chan job, queueSize),
		pool:       make(chan chan job, maxWorkers),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	for i := 0; i < maxWorkers; i++ {
		w := &worker{id: i, pool: d.pool, jobs: make(chan job), logger: logger, deliver: d.deliver}
		w.start(ctx, &d.wg)
	}
	go d.dispatch()

	logger.Info("mail dispatcher started", "max_workers", maxWorkers, "queue_size", queueSize)
	return d
}

// dispatch hands queued jobs to idle workers until the queue is closed and drained.
func (d *Dispatcher) dispatch() {
	defer close(d.done)
	for j := range d.queue {
		obs.SetMailQueueDepth(len(d.queue))
		select {
		case jobs := <-d.pool:
			select {
			case jobs <- j:
			case <-d.ctx.Done():
				return
			}
		case <-d.ctx.Done():
			d.logger.Warn("mail dispatcher stopped with undelivered messages", "pending", len(d.queue)+1)
			return
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, j.msg); err != nil {
		d.logger.Error("mail delivery failed", "error", err, "to", j.msg.To, "subject", j.msg.Subject)
		return
	}
	d.logger.Debug("mail delivered", "to", j.msg.To, "latency", time.Since(j.queuedAt))
}

// Send enqueues msg without blocking.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- job{msg: msg, queuedAt: time.Now()}:
		obs.SetMailQueueDepth(len(d.queue))
		return nil
	default:
		d.logger.WarnContext(ctx, "mail queue full, dropping message", "to", msg.To)
		return internal.NewInfrastructureError("mail queue is full", ErrQueueFull)
	}
}

// Shutdown stops accepting messages, delivers what is queued and waits for workers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.logger.Info("shutting down mail dispatcher")

	var err error
	select {
	case <-d.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.cancel()
	d.wg.Wait()

	d.logger.Info("mail dispatcher shutdown complete")
	return err
}

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outgoing mail", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPSender struct {
	cfg SMTPConfig
	// send is smtp.SendMail, replaceable in tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{msg.To}, buildMIME(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// NewSender picks the sender for the configured driver.
func NewSender(cfg internal.MailerConfig, logger *slog.Logger) Sender {
	if cfg.Driver == "smtp" {
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	}
	return NewLogSender(logger)
}
