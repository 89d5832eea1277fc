package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// SMTPProvider sends email through an SMTP relay. Port 465 uses implicit TLS,
// port 587 uses STARTTLS, anything else (MailHog on 1025) is plain.
type SMTPProvider struct {
	cfg    SMTPConfig
	dialer net.Dialer
}

// NewSMTPProvider creates an SMTP provider.
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

// Name returns the provider name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// Configured reports whether a relay host and port are set.
func (p *SMTPProvider) Configured() bool {
	return p.cfg.Host != "" && p.cfg.Port != ""
}

// Send relays m. Replies in the 5xx range are permanent; a 5xx to RCPT
// rejects the recipient. 4xx replies and connection failures are transient.
func (p *SMTPProvider) Send(ctx context.Context, m *Message) error {
	// Gmail requires the envelope sender to match the authenticated user.
	from := m.From
	if strings.Contains(p.cfg.Host, "gmail.com") && p.cfg.User != "" {
		from = p.cfg.User
	}

	msg := BuildMessage(from, m, time.Now())
	addr := net.JoinHostPort(p.cfg.Host, p.cfg.Port)

	if err := p.send(ctx, addr, from, m.To, msg); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}

	slog.Debug("Email relayed via SMTP", "smtp_server", addr, "emergency_id", m.EmergencyID)
	return nil
}

func (p *SMTPProvider) send(ctx context.Context, addr, from string, to []string, msg []byte) error {
	var conn net.Conn
	var err error
	if p.cfg.Port == "465" {
		tlsDialer := &tls.Dialer{NetDialer: &p.dialer, Config: &tls.Config{ServerName: p.cfg.Host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = p.dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return retry.Transient(fmt.Errorf("failed to connect to SMTP server: %w", err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if p.cfg.Port != "465" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.cfg.Host}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if p.cfg.User != "" && p.cfg.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", p.cfg.User, p.cfg.Password, p.cfg.Host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return classifyReply(fmt.Errorf("failed to set sender %s: %w", from, err), false)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return classifyReply(fmt.Errorf("failed to set recipient %s: %w", rcpt, err), true)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err := w.Close(); err != nil {
		return classifyReply(fmt.Errorf("failed to close data writer: %w", err), false)
	}

	if err := client.Quit(); err != nil {
		slog.Warn("Error during SMTP QUIT", "error", err)
	}
	return nil
}

func classifyReply(err error, recipient bool) error {
	var reply *textproto.Error
	if !errors.As(err, &reply) {
		return err
	}
	switch {
	case reply.Code >= 500 && recipient:
		return retry.Permanent(fmt.Errorf("%w: %w", ErrRecipientRejected, err))
	case reply.Code >= 500:
		return retry.Permanent(err)
	case reply.Code >= 400:
		return retry.Transient(err)
	}
	return err
}

// BuildMessage renders m as a plain-text RFC 822 message with the emergency
// headers from m.Headers.
func BuildMessage(from string, m *Message, now time.Time) []byte {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(m.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))

	headers := m.Headers()
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", name, headers[name]))
	}

	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Body, "\r\n", "\n"), "\n", "\r\n"))
	return msg.Bytes()
}
