package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultOTPTTL is the validity window for a one-time password.
var DefaultOTPTTL = 5 * time.Minute

// CodeEntry is a stored one-time password with its absolute expiry.
type CodeEntry struct {
	Code      string
	ExpiresAt time.Time
}

// CodeStore is the narrow keyed storage the OTP service needs. At most one
// entry exists per key; Set overwrites any prior entry. DeleteIfEquals only
// removes the entry when the stored code matches, so a stale deferred purge
// can never delete a fresher code.
type CodeStore interface {
	Get(key string) (CodeEntry, bool)
	Set(key string, entry CodeEntry)
	DeleteIfEquals(key, code string) bool
}

// NewMemoryCodeStore returns a process-local CodeStore guarded by a mutex.
func NewMemoryCodeStore() CodeStore {
	return &memoryCodeStore{entries: map[string]CodeEntry{}}
}

type memoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]CodeEntry
}

func (s *memoryCodeStore) Get(key string) (CodeEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *memoryCodeStore) Set(key string, entry CodeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

func (s *memoryCodeStore) DeleteIfEquals(key, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || entry.Code != code {
		return false
	}
	delete(s.entries, key)
	return true
}

// OTPService generates, stores, and validates short-lived numeric codes tied
// to an email address. Codes are single-use and expire after the configured
// TTL, enforced both lazily on read and by a deferred purge.
type OTPService struct {
	store    CodeStore
	mailer   Mailer
	ttl      time.Duration
	logger   Logger
	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

// OTPOption customizes an OTPService.
type OTPOption func(*OTPService)

// WithOTPTTL overrides the code validity window.
func WithOTPTTL(ttl time.Duration) OTPOption {
	return func(s *OTPService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithOTPClock injects a custom time source (useful for tests).
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPScheduler overrides how deferred purges are scheduled. Tests inject
// a synchronous scheduler; the default is time.AfterFunc.
func WithOTPScheduler(schedule func(d time.Duration, fn func())) OTPOption {
	return func(s *OTPService) {
		if schedule != nil {
			s.schedule = schedule
		}
	}
}

// WithOTPLogger overrides the logger.
func WithOTPLogger(logger Logger) OTPOption {
	return func(s *OTPService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewOTPService creates an OTPService backed by the given store and mailer.
func NewOTPService(store CodeStore, mailer Mailer, opts ...OTPOption) *OTPService {
	s := &OTPService{
		store:  store,
		mailer: mailer,
		ttl:    DefaultOTPTTL,
		logger: defLogger{},
		now:    time.Now,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Send generates a fresh 6-digit code for the email, stores it with the TTL,
// schedules its purge, and dispatches it through the mailer. A new send
// overwrites any outstanding code for the same email. If delivery fails the
// stored entry stays valid so the caller can retry with a resend.
func (s *OTPService) Send(ctx context.Context, email string) error {
	code, err := generateOTPCode()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to generate OTP code")
	}

	s.store.Set(email, CodeEntry{
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	})

	// The purge checks code equality, so it no-ops when a later Send
	// replaced the entry or a Verify already consumed it.
	s.schedule(s.ttl, func() {
		if s.store.DeleteIfEquals(email, code) {
			s.logger.Debug("purged expired OTP", "email", email)
		}
	})

	subject := "Your One-Time Password (OTP)"
	body := fmt.Sprintf("Your OTP code is %s. It will expire in %d minutes.", code, int(s.ttl.Minutes()))

	if err := s.mailer.Send(ctx, email, subject, body); err != nil {
		s.logger.Error("error sending OTP email", "email", email, "error", err)
		return errors.Wrap(err, ErrOTPDeliveryFailed.Category, ErrOTPDeliveryFailed.Message).
			WithTextCode(ErrOTPDeliveryFailed.TextCode)
	}

	return nil
}

// Verify reports whether the code matches the outstanding entry for the
// email within its validity window. A successful match consumes the entry,
// making codes single-use. An expired entry is purged on read.
func (s *OTPService) Verify(email, code string) bool {
	entry, ok := s.store.Get(email)
	if !ok {
		return false
	}

	if entry.Code == code && s.now().Before(entry.ExpiresAt) {
		// Consumption is the gate: two racing calls can both read the
		// entry, only the one that deletes it accepts the code.
		return s.store.DeleteIfEquals(email, entry.Code)
	}

	if !s.now().Before(entry.ExpiresAt) {
		s.store.DeleteIfEquals(email, entry.Code)
	}

	return false
}

// HasActiveCode reports whether an unexpired code is outstanding for the email.
func (s *OTPService) HasActiveCode(email string) bool {
	entry, ok := s.store.Get(email)
	return ok && s.now().Before(entry.ExpiresAt)
}

// TTL exposes the configured validity window.
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

var otpCodeSpace = big.NewInt(1_000_000)

// generateOTPCode returns a uniformly random 6-digit code, leading zeros kept.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
