package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/innovation-portal/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMailer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Mailer Suite")
}

type recordingSender struct {
	mu      sync.Mutex
	sent    []Message
	release chan struct{}
	started chan struct{}
	err     error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var _ = Describe("Dispatcher", func() {
	It("should deliver every queued message before shutdown returns", func() {
		// Given
		sender := &recordingSender{}
		d := NewDispatcher(sender, Config{MaxWorkers: 3, QueueSize: 50}, logger.Discard())

		// When
		for i := 0; i < 20; i++ {
			Expect(d.Send(context.Background(), Message{To: "user@example.com", Subject: "code"})).To(Succeed())
		}
		Expect(d.Shutdown(context.Background())).To(Succeed())

		// Then
		Expect(sender.count()).To(Equal(20))
	})

	It("should refuse messages after shutdown", func() {
		d := NewDispatcher(&recordingSender{}, Config{}, logger.Discard())
		Expect(d.Shutdown(context.Background())).To(Succeed())
		Expect(d.Shutdown(context.Background())).To(Succeed())

		err := d.Send(context.Background(), Message{To: "late@example.com"})
		Expect(errors.Is(err, ErrClosed)).To(BeTrue())
	})

	It("should report a full queue instead of blocking", func() {
		// Given one busy worker and a queue of one
		sender := &recordingSender{release: make(chan struct{}), started: make(chan struct{}, 10)}
		d := NewDispatcher(sender, Config{MaxWorkers: 1, QueueSize: 1}, logger.Discard())

		Expect(d.Send(context.Background(), Message{To: "a@example.com"})).To(Succeed())
		Eventually(sender.started).Should(Receive())

		// the dispatcher holds the second message while waiting for a worker
		Expect(d.Send(context.Background(), Message{To: "b@example.com"})).To(Succeed())
		Eventually(func() int { return len(d.queue) }).Should(Equal(0))

		Expect(d.Send(context.Background(), Message{To: "c@example.com"})).To(Succeed())

		// When
		err := d.Send(context.Background(), Message{To: "d@example.com"})

		// Then
		Expect(errors.Is(err, ErrQueueFull)).To(BeTrue())

		close(sender.release)
		Expect(d.Shutdown(context.Background())).To(Succeed())
		Expect(sender.count()).To(Equal(3))
	})

	It("should keep working after a delivery failure", func() {
		sender := &recordingSender{err: errors.New("mailbox unavailable")}
		d := NewDispatcher(sender, Config{MaxWorkers: 1}, logger.Discard())

		Expect(d.Send(context.Background(), Message{To: "a@example.com"})).To(Succeed())
		Expect(d.Send(context.Background(), Message{To: "b@example.com"})).To(Succeed())
		Expect(d.Shutdown(context.Background())).To(Succeed())
		Expect(sender.count()).To(Equal(2))
	})
})

var _ = Describe("SMTPSender", func() {
	It("should build a plain text message for the configured relay", func() {
		// Given
		var (
			gotAddr string
			gotFrom string
			gotTo   []string
			gotBody string
		)
		sender := NewSMTPSender(SMTPConfig{Host: "smtp.internal", Port: 2525, From: "portal@example.com"})
		sender.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotBody = addr, from, to, string(msg)
			return nil
		}

		// When
		err := sender.Send(context.Background(), Message{To: "alice@example.com", Subject: "Your code", Body: "123456"})

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(gotAddr).To(Equal("smtp.internal:2525"))
		Expect(gotFrom).To(Equal("portal@example.com"))
		Expect(gotTo).To(Equal([]string{"alice@example.com"}))
		Expect(gotBody).To(ContainSubstring("Subject: Your code\r\n"))
		Expect(gotBody).To(HaveSuffix("\r\n\r\n123456"))
	})

	It("should not dial when the context is already done", func() {
		sender := NewSMTPSender(SMTPConfig{Host: "smtp.internal", Port: 25})
		sender.send = func(string, smtp.Auth, string, []string, []byte) error {
			Fail("send should not be called")
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		Expect(sender.Send(ctx, Message{To: "x@example.com"})).To(MatchError(context.DeadlineExceeded))
	})
})
