package auth_test

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/auth"
)

var otpCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// captureMailer records the last OTP body so tests can pull out the code.
type captureMailer struct {
	to      string
	subject string
	body    string
	sends   int
	fail    error
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.sends++
	if m.fail != nil {
		return m.fail
	}
	m.to = to
	m.subject = subject
	m.body = body
	return nil
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	match := otpCodePattern.FindStringSubmatch(m.body)
	require.Len(t, match, 2, "mail body should contain a 6 digit code")
	return match[1]
}

// noopScheduler drops deferred purges so tests control expiry with the clock.
func noopScheduler(time.Duration, func()) {}

// rendezvousStore holds the first two reads at a barrier so both observe the
// stored entry before either caller can consume it.
type rendezvousStore struct {
	inner auth.CodeStore
	gate  sync.WaitGroup
	armed int32
}

func newRendezvousStore(inner auth.CodeStore) *rendezvousStore {
	s := &rendezvousStore{inner: inner, armed: 2}
	s.gate.Add(2)
	return s
}

func (s *rendezvousStore) Get(key string) (auth.CodeEntry, bool) {
	entry, ok := s.inner.Get(key)
	if atomic.AddInt32(&s.armed, -1) >= 0 {
		s.gate.Done()
		s.gate.Wait()
	}
	return entry, ok
}

func (s *rendezvousStore) Set(key string, entry auth.CodeEntry) {
	s.inner.Set(key, entry)
}

func (s *rendezvousStore) DeleteIfEquals(key, code string) bool {
	return s.inner.DeleteIfEquals(key, code)
}

func TestOTPService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and mails a six digit code", func(t *testing.T) {
		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		err := service.Send(ctx, "test@example.com")

		require.NoError(t, err)
		assert.Equal(t, "test@example.com", mailer.to)
		assert.Equal(t, "Your One-Time Password (OTP)", mailer.subject)
		assert.Regexp(t, otpCodePattern, mailer.body)
		assert.True(t, service.HasActiveCode("test@example.com"))
	})

	t.Run("resend replaces the outstanding code", func(t *testing.T) {
		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		first := mailer.lastCode(t)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		second := mailer.lastCode(t)

		if first != second {
			assert.False(t, service.Verify("test@example.com", first))
		}
		assert.True(t, service.Verify("test@example.com", second))
	})

	t.Run("delivery failure keeps the stored code", func(t *testing.T) {
		mailer := &captureMailer{fail: goerrors.New("smtp unavailable", goerrors.CategoryOperation)}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		err := service.Send(ctx, "test@example.com")

		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, auth.ErrOTPDeliveryFailed.TextCode, richErr.TextCode)

		// the code stays outstanding so a resend path can recover
		assert.True(t, service.HasActiveCode("test@example.com"))
	})
}

func TestOTPService_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code verifies exactly once", func(t *testing.T) {
		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		code := mailer.lastCode(t)

		assert.True(t, service.Verify("test@example.com", code))
		// consumed on first use
		assert.False(t, service.Verify("test@example.com", code))
		assert.False(t, service.HasActiveCode("test@example.com"))
	})

	t.Run("wrong code does not consume the entry", func(t *testing.T) {
		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		code := mailer.lastCode(t)

		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}

		assert.False(t, service.Verify("test@example.com", wrong))
		assert.True(t, service.Verify("test@example.com", code))
	})

	t.Run("concurrent verifies accept the code exactly once", func(t *testing.T) {
		mailer := &captureMailer{}
		store := newRendezvousStore(auth.NewMemoryCodeStore())
		service := auth.NewOTPService(store, mailer,
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		code := mailer.lastCode(t)

		var accepted int32
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if service.Verify("test@example.com", code) {
					atomic.AddInt32(&accepted, 1)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, accepted)
		assert.False(t, service.HasActiveCode("test@example.com"))
	})

	t.Run("unknown email never verifies", func(t *testing.T) {
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), &captureMailer{},
			auth.WithOTPScheduler(noopScheduler),
		)

		assert.False(t, service.Verify("ghost@example.com", "123456"))
	})

	t.Run("expired code is rejected and purged", func(t *testing.T) {
		current := time.Now()
		clock := func() time.Time { return current }

		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPClock(clock),
			auth.WithOTPScheduler(noopScheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		code := mailer.lastCode(t)

		current = current.Add(auth.DefaultOTPTTL + time.Second)

		assert.False(t, service.Verify("test@example.com", code))
		assert.False(t, service.HasActiveCode("test@example.com"))
	})
}

func TestOTPService_Scheduler(t *testing.T) {
	ctx := context.Background()

	t.Run("deferred purge removes the expired entry", func(t *testing.T) {
		var purge func()
		scheduler := func(d time.Duration, fn func()) {
			assert.Equal(t, auth.DefaultOTPTTL, d)
			purge = fn
		}

		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(scheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		require.NotNil(t, purge)

		purge()

		assert.False(t, service.HasActiveCode("test@example.com"))
	})

	t.Run("stale purge never deletes a fresher code", func(t *testing.T) {
		var purges []func()
		scheduler := func(_ time.Duration, fn func()) {
			purges = append(purges, fn)
		}

		mailer := &captureMailer{}
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), mailer,
			auth.WithOTPScheduler(scheduler),
			auth.WithOTPLogger(testLogger{}),
		)

		require.NoError(t, service.Send(ctx, "test@example.com"))
		require.NoError(t, service.Send(ctx, "test@example.com"))
		code := mailer.lastCode(t)
		require.Len(t, purges, 2)

		// firing the first purge must not remove the replacement code
		purges[0]()

		assert.True(t, service.Verify("test@example.com", code))
	})
}

func TestOTPService_TTL(t *testing.T) {
	t.Run("defaults to the package TTL", func(t *testing.T) {
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), &captureMailer{})
		assert.Equal(t, auth.DefaultOTPTTL, service.TTL())
	})

	t.Run("option overrides the window", func(t *testing.T) {
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), &captureMailer{},
			auth.WithOTPTTL(10*time.Minute),
		)
		assert.Equal(t, 10*time.Minute, service.TTL())
	})

	t.Run("non positive TTL is ignored", func(t *testing.T) {
		service := auth.NewOTPService(auth.NewMemoryCodeStore(), &captureMailer{},
			auth.WithOTPTTL(-time.Minute),
		)
		assert.Equal(t, auth.DefaultOTPTTL, service.TTL())
	})
}
