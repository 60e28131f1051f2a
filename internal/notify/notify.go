// Package notify sends the external alert that the alarm controller fires
// from its "notify" state, over SMTP.
package notify

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// Config holds the SMTP transport and message template settings.
type Config struct {
	Server   string
	Port     int
	TLS      bool
	User     string
	Password string

	From     string
	To       string
	Template string // fmt-style, one %s placeholder for the subject

	DialTimeout time.Duration
}

// Result describes the outcome of a single Send call, for the controller to log.
type Result struct {
	Sent     bool
	Duration time.Duration
	Err      error
}

// Notifier sends security alerts by email.
type Notifier struct {
	cfg Config
}

// New constructs a Notifier from cfg. A zero DialTimeout is replaced by 10s.
func New(cfg Config) *Notifier {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Notifier{cfg: cfg}
}

// Send delivers subject as a security alert. It connects, optionally
// negotiates STARTTLS, optionally authenticates, sends, and closes the
// connection - mirroring the original alert sender's call shape exactly.
func (n *Notifier) Send(subject string) Result {
	start := time.Now()
	err := n.send(subject)
	return Result{Sent: err == nil, Duration: time.Since(start), Err: err}
}

func (n *Notifier) send(subject string) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Server, n.cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, n.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.cfg.Server)
	if err != nil {
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer client.Close()

	if n.cfg.TLS {
		if err := client.StartTLS(&tls.Config{ServerName: n.cfg.Server}); err != nil {
			return fmt.Errorf("notify: starttls: %w", err)
		}
	}

	if n.cfg.User != "" && n.cfg.Password != "" {
		auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: auth: %w", err)
		}
	}

	body := formatBody(n.cfg.Template, subject)
	msg := buildMessage(n.cfg.From, n.cfg.To, subject, body)

	if err := client.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("notify: MAIL FROM: %w", err)
	}
	if err := client.Rcpt(n.cfg.To); err != nil {
		return fmt.Errorf("notify: RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("notify: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close body: %w", err)
	}
	return client.Quit()
}

func formatBody(template, subject string) string {
	if template == "" {
		template = "Security alert: %s"
	}
	return fmt.Sprintf(template, subject)
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Security alert: %s\r\n\r\n%s\r\n",
		from, to, subject, body,
	))
}
