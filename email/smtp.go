// Package email delivers OTP mail. SMTPSender speaks plain SMTP with
// STARTTLS-less submission (host setups terminating TLS in front, or a
// local relay); WriterSender is a development sink that prints the mail.
package email

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"sync"
)

// SMTPSender sends mail through a single SMTP endpoint.
type SMTPSender struct {
	Addr     string // host:port
	Username string
	Password string
}

// Send delivers one text/plain message and blocks until the server accepts
// it. The context bounds the dial and the whole exchange.
func (s *SMTPSender) Send(ctx context.Context, to, from, subject, body string) error {
	host, _, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return fmt.Errorf("smtp address: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.Username != "" {
		auth := smtp.PlainAuth("", s.Username, s.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n", from, to, subject, body)
	if _, err := io.WriteString(w, msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

// WriterSender writes each message to an io.Writer. Used by the demo
// server and tests in place of a real mail relay.
type WriterSender struct {
	W  io.Writer
	mu sync.Mutex
}

func (s *WriterSender) Send(_ context.Context, to, from, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := fmt.Fprintf(s.W, "--- mail to=%s from=%s subject=%q ---\n%s\n", to, from, subject, body)
	return err
}
