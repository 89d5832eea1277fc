package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afikmenashe/campus-alert/internal/delivery/retry"
	"github.com/afikmenashe/campus-alert/internal/notification"
)

type mockProvider struct {
	name       string
	configured bool
	err        error
	calls      int
}

func (m *mockProvider) Name() string     { return m.name }
func (m *mockProvider) Configured() bool { return m.configured }
func (m *mockProvider) Send(_ context.Context, _ *Message) error {
	m.calls++
	return m.err
}

func testMessage() *Message {
	return &Message{
		From:        "alerts@school.test",
		To:          []string{"parent@example.com"},
		Subject:     "URGENT: Emergency Alert - EMRG_1",
		Body:        "line one\nline two",
		EmergencyID: "EMRG_1",
		RecipientID: "STU 42",
		Kind:        notification.KindAlert,
	}
}

func TestNewMessage(t *testing.T) {
	m, err := NewMessage("alerts@school.test", notification.Payload{
		EmergencyID: "EMRG_1",
		RecipientID: "42",
		Address:     " a@example.com ,, b@example.com",
		Subject:     "s",
		Body:        "b",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, m.To)
	assert.Equal(t, notification.KindAlert, m.Kind)
	assert.Equal(t, map[string]string{
		"X-Emergency-ID":      "EMRG_1",
		"X-Recipient-ID":      "42",
		"X-Notification-Kind": "alert",
	}, m.Headers())

	_, err = NewMessage("alerts@school.test", notification.Payload{Address: "+15550001"})
	assert.ErrorIs(t, err, ErrRecipientRejected)
	assert.False(t, retry.IsRetryable(err))
}

func TestMessage_TagsAreSanitized(t *testing.T) {
	tags := testMessage().Tags()
	assert.Equal(t, "EMRG_1", tags["emergency_id"])
	assert.Equal(t, "STU_42", tags["recipient_id"])
	assert.Equal(t, "alert", tags["kind"])
}

func TestChain_Send(t *testing.T) {
	tests := []struct {
		name          string
		first         *mockProvider
		second        *mockProvider
		wantErr       bool
		wantRetryable bool
		wantRejected  bool
		wantCalls     [2]int
	}{
		{
			name:      "first succeeds",
			first:     &mockProvider{name: "smtp", configured: true},
			second:    &mockProvider{name: "ses", configured: true},
			wantCalls: [2]int{1, 0},
		},
		{
			name:      "unconfigured first is skipped",
			first:     &mockProvider{name: "ses"},
			second:    &mockProvider{name: "smtp", configured: true},
			wantCalls: [2]int{0, 1},
		},
		{
			name:      "transient failure falls back",
			first:     &mockProvider{name: "ses", configured: true, err: retry.Transient(errors.New("throttled"))},
			second:    &mockProvider{name: "smtp", configured: true},
			wantCalls: [2]int{1, 1},
		},
		{
			name:         "rejected recipient stops the chain",
			first:        &mockProvider{name: "ses", configured: true, err: retry.Permanent(ErrRecipientRejected)},
			second:       &mockProvider{name: "smtp", configured: true},
			wantErr:      true,
			wantRejected: true,
			wantCalls:    [2]int{1, 0},
		},
		{
			name:          "all fail with one transient",
			first:         &mockProvider{name: "ses", configured: true, err: retry.Permanent(errors.New("account suspended"))},
			second:        &mockProvider{name: "smtp", configured: true, err: retry.Transient(errors.New("451 try later"))},
			wantErr:       true,
			wantRetryable: true,
			wantCalls:     [2]int{1, 1},
		},
		{
			name:      "all fail permanently",
			first:     &mockProvider{name: "ses", configured: true, err: retry.Permanent(errors.New("account suspended"))},
			second:    &mockProvider{name: "smtp", configured: true, err: retry.Permanent(errors.New("554 relay denied"))},
			wantErr:   true,
			wantCalls: [2]int{1, 1},
		},
		{
			name:      "none configured",
			first:     &mockProvider{name: "ses"},
			second:    &mockProvider{name: "resend"},
			wantErr:   true,
			wantCalls: [2]int{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewChain(tt.first, tt.second).Send(context.Background(), testMessage())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantRetryable, retry.IsRetryable(err))
				assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRecipientRejected))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, [2]int{tt.first.calls, tt.second.calls})
		})
	}
}

func TestChain_Active(t *testing.T) {
	c := NewChain(
		&mockProvider{name: "resend", configured: true},
		&mockProvider{name: "ses"},
		&mockProvider{name: "smtp", configured: true},
	)
	assert.Equal(t, []string{"resend", "smtp"}, c.Active())
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: str("ses-1")}, nil
}

func TestSESProvider_Send(t *testing.T) {
	api := &fakeSES{}
	p := NewSESProviderWithAPI(api, "us-east-1")
	require.True(t, p.Configured())
	require.NoError(t, p.Send(context.Background(), testMessage()))

	in := api.input
	require.NotNil(t, in)
	assert.Equal(t, []string{"parent@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "line one\nline two", *in.Content.Simple.Body.Text.Data)

	tags := make(map[string]string)
	for _, tag := range in.EmailTags {
		tags[*tag.Name] = *tag.Value
	}
	assert.Equal(t, "EMRG_1", tags["emergency_id"])
	assert.Equal(t, "STU_42", tags["recipient_id"])

	headers := make(map[string]string)
	for _, h := range in.Content.Simple.Headers {
		headers[*h.Name] = *h.Value
	}
	assert.Equal(t, "EMRG_1", headers["X-Emergency-ID"])
}

func TestSESProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRejected  bool
		wantRetryable bool
	}{
		{name: "message rejected", err: &types.MessageRejected{Message: str("Email address is not verified")}, wantRejected: true},
		{name: "bad request", err: &types.BadRequestException{Message: str("bad address")}, wantRejected: true},
		{name: "account suspended", err: &types.AccountSuspendedException{Message: str("suspended")}},
		{name: "throttled", err: &types.TooManyRequestsException{Message: str("slow down")}, wantRetryable: true},
		{name: "network", err: errors.New("dial tcp: connection reset"), wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSESProviderWithAPI(&fakeSES{err: tt.err}, "us-east-1")
			err := p.Send(context.Background(), testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRecipientRejected))
			assert.Equal(t, tt.wantRetryable, retry.IsRetryable(err))
		})
	}
}

func newResendServer(t *testing.T, handler http.HandlerFunc) *ResendProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/emails", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := resend.NewClient("re_test")
	client.BaseURL, _ = url.Parse(server.URL)
	return NewResendProviderWithClient(client)
}

func TestResendProvider_Send(t *testing.T) {
	var got resend.SendEmailRequest
	p := newResendServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resend.SendEmailResponse{Id: "em_123"})
	})

	require.True(t, p.Configured())
	require.NoError(t, p.Send(context.Background(), testMessage()))
	assert.Equal(t, []string{"parent@example.com"}, got.To)
	assert.Equal(t, "URGENT: Emergency Alert - EMRG_1", got.Subject)
	assert.Equal(t, "line one\nline two", got.Text)
	assert.Equal(t, "EMRG_1", got.Headers["X-Emergency-ID"])
	assert.Contains(t, got.Tags, resend.Tag{Name: "recipient_id", Value: "STU_42"})
}

func TestResendProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		message       string
		wantRejected  bool
		wantRetryable bool
	}{
		{name: "invalid recipient", status: http.StatusUnprocessableEntity, message: "Invalid `to` field.", wantRejected: true},
		{name: "rate limited", status: http.StatusTooManyRequests, message: "Too many requests", wantRetryable: true},
		{name: "domain not verified", status: http.StatusForbidden, message: "The school.test domain is not verified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newResendServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"statusCode": tt.status, "message": tt.message})
			})

			err := p.Send(context.Background(), testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRecipientRejected))
			assert.Equal(t, tt.wantRetryable, retry.IsRetryable(err))
		})
	}
}

func TestUnconfiguredProviders(t *testing.T) {
	assert.False(t, NewResendProvider("").Configured())
	assert.Error(t, NewResendProvider("").Send(context.Background(), testMessage()))

	ses := NewSESProviderWithAPI(nil, "us-east-1")
	assert.False(t, ses.Configured())
	assert.Error(t, ses.Send(context.Background(), testMessage()))

	assert.False(t, NewSMTPProvider(SMTPConfig{}).Configured())
	assert.Equal(t, "smtp", NewSMTPProvider(SMTPConfig{}).Name())
}

// fakeSMTPServer accepts one session and records the DATA section.
type fakeSMTPServer struct {
	ln        net.Listener
	rcptReply string
	mu        sync.Mutex
	rcpt      []string
	data      string
	done      chan struct{}
}

func startFakeSMTP(t *testing.T, rcptReply string) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSMTPServer{ln: ln, rcptReply: rcptReply, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
	reply("220 fake ESMTP")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 fake")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, strings.TrimSpace(line))
			s.mu.Unlock()
			reply(s.rcptReply)
		case cmd == "DATA":
			reply("354 go ahead")
			var sb strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				sb.WriteString(l)
			}
			s.mu.Lock()
			s.data = sb.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestSMTPProvider_Send(t *testing.T) {
	srv := startFakeSMTP(t, "250 OK")
	host, port, err := net.SplitHostPort(srv.ln.Addr().String())
	require.NoError(t, err)

	p := NewSMTPProvider(SMTPConfig{Host: host, Port: port})
	require.True(t, p.Configured())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Send(ctx, testMessage()))

	<-srv.done
	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.rcpt, 1)
	assert.Contains(t, srv.rcpt[0], "parent@example.com")
	assert.Contains(t, srv.data, "Subject: URGENT: Emergency Alert - EMRG_1\r\n")
	assert.Contains(t, srv.data, "X-Emergency-ID: EMRG_1\r\n")
	assert.Contains(t, srv.data, "line one\r\nline two")
}

func TestSMTPProvider_ReplyClassification(t *testing.T) {
	tests := []struct {
		name          string
		rcptReply     string
		wantRejected  bool
		wantRetryable bool
	}{
		{name: "mailbox unknown", rcptReply: "550 5.1.1 no such user", wantRejected: true},
		{name: "greylisted", rcptReply: "451 4.7.1 try later", wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := startFakeSMTP(t, tt.rcptReply)
			host, port, err := net.SplitHostPort(srv.ln.Addr().String())
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = NewSMTPProvider(SMTPConfig{Host: host, Port: port}).Send(ctx, testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ErrRecipientRejected))
			assert.Equal(t, tt.wantRetryable, retry.IsRetryable(err))
		})
	}
}

func TestSMTPProvider_SendUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	p := NewSMTPProvider(SMTPConfig{Host: host, Port: port})
	err = p.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, retry.IsRetryable(err))
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	m := testMessage()
	m.To = []string{"b@example.com", "c@example.com"}
	m.Body = "x\ny"
	msg := string(BuildMessage("a@school.test", m, now))

	assert.True(t, strings.HasPrefix(msg, "From: a@school.test\r\n"))
	assert.Contains(t, msg, "To: b@example.com, c@example.com\r\n")
	assert.Contains(t, msg, "Date: Fri, 01 May 2026 08:00:00 +0000\r\n")
	assert.Contains(t, msg, "X-Recipient-ID: STU 42\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nx\r\ny"))
}
