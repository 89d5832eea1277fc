// Package console prints notifications instead of transmitting them.
// It is the default channel for local runs and drills.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/afikmenashe/campus-alert/internal/notification"
)

// Sender writes each payload to an io.Writer.
type Sender struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSender creates a console sender writing to stdout.
func NewSender() *Sender {
	return NewSenderWithWriter(os.Stdout)
}

// NewSenderWithWriter creates a console sender writing to w.
func NewSenderWithWriter(w io.Writer) *Sender {
	return &Sender{out: w}
}

// Type returns the channel name this sender handles.
func (s *Sender) Type() string {
	return "console"
}

// Send prints the payload. Writes are serialized so concurrent deliveries do
// not interleave.
func (s *Sender) Send(ctx context.Context, p notification.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(fmt.Sprintf("To: %s\n", p.Address))
	sb.WriteString(fmt.Sprintf("Subject: %s\n", p.Subject))
	sb.WriteString(strings.Repeat("-", 60) + "\n")
	sb.WriteString(p.Body)
	if !strings.HasSuffix(p.Body, "\n") {
		sb.WriteString("\n")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, sb.String()); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}
