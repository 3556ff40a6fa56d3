package otp_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StudentPortal/internal/autherr"
	"StudentPortal/internal/otp"
	"StudentPortal/internal/otp/otptest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newLedger(t *testing.T) (*otp.Ledger, *otptest.MemoryRepository, *clock) {
	t.Helper()
	repo := otptest.NewMemoryRepository()
	c := &clock{t: start}
	return otp.NewLedger(repo, 5*time.Minute, nil, otp.WithClock(c.now)), repo, c
}

func TestIssue_StoresSixDigitCode(t *testing.T) {
	l, repo, _ := newLedger(t)

	code, err := l.Issue(context.Background(), "alice@x.com", "student")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	stored := repo.Codes()
	require.Len(t, stored, 1)
	assert.Equal(t, "alice@x.com", stored[0].Email)
	assert.Equal(t, code, stored[0].Code)
	assert.Equal(t, "student", stored[0].Role)
	assert.Equal(t, start, stored[0].CreatedAt)
	assert.Equal(t, start.Add(5*time.Minute), stored[0].ExpiresAt)
}

func TestIssue_PadsLeadingZeros(t *testing.T) {
	repo := otptest.NewMemoryRepository()
	l := otp.NewLedger(repo, 0, nil, otp.WithRandom(bytes.NewReader(make([]byte, 64))))

	code, err := l.Issue(context.Background(), "bob@x.com", "student")

	require.NoError(t, err)
	assert.Equal(t, "000000", code)
	assert.Equal(t, otp.DefaultTTL, l.TTL())
}

func TestIssue_SecondCodeInvalidatesFirst(t *testing.T) {
	l, repo, _ := newLedger(t)
	ctx := context.Background()

	first, err := l.Issue(ctx, "alice@x.com", "student")
	require.NoError(t, err)
	var second string
	for second == "" || second == first {
		second, err = l.Issue(ctx, "alice@x.com", "student")
		require.NoError(t, err)
	}
	assert.Len(t, repo.Codes(), 1)

	rec, err := l.Verify(ctx, "alice@x.com", first)
	require.NoError(t, err)
	assert.Nil(t, rec, "superseded code must not verify")

	rec, err = l.Verify(ctx, "alice@x.com", second)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestIssue_OtherEmailsUntouched(t *testing.T) {
	l, repo, _ := newLedger(t)
	ctx := context.Background()

	_, err := l.Issue(ctx, "alice@x.com", "student")
	require.NoError(t, err)
	_, err = l.Issue(ctx, "bob@x.com", "admin")
	require.NoError(t, err)

	assert.Len(t, repo.Codes(), 2)
}

func TestVerify_SingleUse(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	code, err := l.Issue(ctx, "alice@x.com", "student")
	require.NoError(t, err)

	rec, err := l.Verify(ctx, "alice@x.com", code)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "student", rec.Role)

	for i := 0; i < 3; i++ {
		rec, err = l.Verify(ctx, "alice@x.com", code)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
}

func TestVerify_Rejections(t *testing.T) {
	l, _, c := newLedger(t)
	ctx := context.Background()

	code, err := l.Issue(ctx, "alice@x.com", "student")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	tests := []struct {
		name  string
		email string
		code  string
	}{
		{"wrong code", "alice@x.com", wrong},
		{"other email", "bob@x.com", code},
		{"empty code", "alice@x.com", ""},
		{"empty email", "", code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := l.Verify(ctx, tt.email, tt.code)
			require.NoError(t, err)
			assert.Nil(t, rec)
		})
	}

	t.Run("expired", func(t *testing.T) {
		c.advance(6 * time.Minute)
		rec, err := l.Verify(ctx, "alice@x.com", code)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestVerify_ConcurrentCallersConsumeOnce(t *testing.T) {
	l, _, _ := newLedger(t)
	ctx := context.Background()

	code, err := l.Issue(ctx, "alice@x.com", "student")
	require.NoError(t, err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		gate    = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			rec, err := l.Verify(ctx, "alice@x.com", code)
			assert.NoError(t, err)
			if rec != nil {
				winners.Add(1)
			}
		}()
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestSweepExpired(t *testing.T) {
	l, repo, c := newLedger(t)
	ctx := context.Background()

	_, err := l.Issue(ctx, "old@x.com", "student")
	require.NoError(t, err)
	c.advance(10 * time.Minute)
	_, err = l.Issue(ctx, "fresh@x.com", "student")
	require.NoError(t, err)

	n, err := l.SweepExpired(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.Len(t, repo.Codes(), 1)
	assert.Equal(t, "fresh@x.com", repo.Codes()[0].Email)

	live, err := l.CountLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}

func TestLedger_StoreFailure(t *testing.T) {
	l, repo, _ := newLedger(t)
	repo.Err = errors.New("connection reset")
	ctx := context.Background()

	_, err := l.Issue(ctx, "alice@x.com", "student")
	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)

	_, err = l.Verify(ctx, "alice@x.com", "123456")
	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)

	_, err = l.SweepExpired(ctx)
	assert.ErrorIs(t, err, autherr.ErrUpstreamUnavailable)
}
