package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSMTPNotifier(t *testing.T) {
	d := &fakeDialer{}
	n := &SMTPNotifier{dialer: d, from: "portal@example.edu"}

	require.NoError(t, n.Send(context.Background(), "alice@x.com", "Password Reset OTP", "Your OTP code is: 123456"))

	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"portal@example.edu"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"alice@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Password Reset OTP"}, d.sent[0].GetHeader("Subject"))

	d.err = errors.New("535 authentication failed")
	err := n.Send(context.Background(), "alice@x.com", "s", "b")
	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)
}

func TestSMTPNotifier_CanceledContext(t *testing.T) {
	d := &fakeDialer{}
	n := &SMTPNotifier{dialer: d, from: "portal@example.edu"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Send(ctx, "alice@x.com", "s", "b")

	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)
	assert.Empty(t, d.sent)
}

type fakeEmails struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeEmails) SendWithContext(_ context.Context, p *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "em_1"}, nil
}

func TestResendNotifier(t *testing.T) {
	f := &fakeEmails{}
	n := &ResendNotifier{emails: f, from: "portal@example.edu"}

	require.NoError(t, n.Send(context.Background(), "alice@x.com", "Password Reset OTP", "Your OTP code is: 123456"))
	assert.Equal(t, "portal@example.edu", f.got.From)
	assert.Equal(t, []string{"alice@x.com"}, f.got.To)
	assert.Equal(t, "Your OTP code is: 123456", f.got.Text)

	f.err = errors.New("429 rate limited")
	assert.ErrorIs(t, n.Send(context.Background(), "alice@x.com", "s", "b"), autherr.ErrUpstreamUnavailable)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Send(context.Background(), "alice@x.com", "Password Reset OTP", "Your OTP code is: 123456"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "alice@x.com", fields["to"])
}

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     interface{}
	}{
		{ProviderLog, &LogNotifier{}},
		{ProviderSMTP, &SMTPNotifier{}},
		{ProviderResend, &ResendNotifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			n, err := New(&config.Config{
				MailProvider: tt.provider, SMTPHost: "smtp.example.edu", SMTPPort: 587, ResendAPIKey: "re_x",
			}, zap.NewNop())
			require.NoError(t, err)
			assert.IsType(t, tt.want, n)
		})
	}

	_, err := New(&config.Config{MailProvider: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

type memoryDeliveries struct {
	mu   sync.Mutex
	list []*Delivery
	err  error
}

func (m *memoryDeliveries) Insert(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.list = append(m.list, d)
	return nil
}

func (m *memoryDeliveries) Recent(_ context.Context, limit int64) ([]*Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Delivery{}
	for i := len(m.list) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, m.list[i])
	}
	return out, nil
}

type stubNotifier struct{ err error }

func (s stubNotifier) Send(context.Context, string, string, string) error { return s.err }

func TestRecording(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &memoryDeliveries{}

	ok := NewRecording(stubNotifier{}, repo, ProviderSMTP, nil)
	ok.now = func() time.Time { return at }
	require.NoError(t, ok.Send(context.Background(), "alice@x.com", "Password Reset OTP", "Your OTP code is: 123456"))

	failing := NewRecording(stubNotifier{err: autherr.Upstream("smtp.send", errors.New("timeout"))}, repo, ProviderSMTP, nil)
	err := failing.Send(context.Background(), "bob@x.com", "Password Reset OTP", "Your OTP code is: 654321")
	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)

	require.Len(t, repo.list, 2)
	assert.Equal(t, Delivery{To: "alice@x.com", Subject: "Password Reset OTP", Provider: ProviderSMTP, Status: StatusSent, CreatedAt: at}, *repo.list[0])
	assert.Equal(t, StatusFailed, repo.list[1].Status)
	assert.Contains(t, repo.list[1].Error, "timeout")
}

func TestRecording_StoreFailureDoesNotFailSend(t *testing.T) {
	repo := &memoryDeliveries{err: errors.New("not primary")}
	n := NewRecording(stubNotifier{}, repo, ProviderLog, nil)

	assert.NoError(t, n.Send(context.Background(), "alice@x.com", "s", "b"))
}

func TestListDeliveries(t *testing.T) {
	repo := &memoryDeliveries{}
	for _, to := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, repo.Insert(context.Background(), &Delivery{To: to, Status: StatusSent}))
	}
	h := NewHandler(repo)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/deliveries?limit=2", nil), rec)
	require.NoError(t, h.ListDeliveries(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":"000000000000000000000000","to":"c@x.com","subject":"","provider":"","status":"sent","created_at":"0001-01-01T00:00:00Z"},
		{"id":"000000000000000000000000","to":"b@x.com","subject":"","provider":"","status":"sent","created_at":"0001-01-01T00:00:00Z"}
	]`, rec.Body.String())

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/deliveries?limit=zero", nil), httptest.NewRecorder())
	var he *echo.HTTPError
	require.ErrorAs(t, h.ListDeliveries(c), &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
}
