package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxOTPAttempts = 5

var (
	ErrOTPInvalid         = errors.New("invalid or expired OTP")
	ErrOTPTooManyAttempts = errors.New("too many OTP attempts")
	ErrEmailNotVerified   = errors.New("email not verified")
)

func GenerateOTP(length int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = digits[n.Int64()]
	}
	return string(buf), nil
}

// OTPStore keeps one pending code per email and, once verified, a short-lived
// marker that lets the signup complete.
type OTPStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewOTPStore(client redis.UniversalClient, ttl time.Duration) *OTPStore {
	return &OTPStore{client: client, ttl: ttl}
}

func otpKey(email string) string      { return "otp:" + email }
func attemptsKey(email string) string { return "otp:attempts:" + email }
func verifiedKey(email string) string { return "otp:verified:" + email }

func (s *OTPStore) Save(ctx context.Context, email, code string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, otpKey(email), code, s.ttl)
	pipe.Del(ctx, attemptsKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Verify(ctx context.Context, email, code string) error {
	attempts, err := s.client.Incr(ctx, attemptsKey(email)).Result()
	if err != nil {
		return fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts == 1 {
		s.client.Expire(ctx, attemptsKey(email), s.ttl)
	}
	if attempts > maxOTPAttempts {
		return ErrOTPTooManyAttempts
	}

	stored, err := s.client.Get(ctx, otpKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPInvalid
	}
	if err != nil {
		return fmt.Errorf("read otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrOTPInvalid
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, otpKey(email), attemptsKey(email))
	pipe.Set(ctx, verifiedKey(email), "1", s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *OTPStore) IsVerified(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Exists(ctx, verifiedKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check verified email: %w", err)
	}
	return n == 1, nil
}

func (s *OTPStore) ClearVerified(ctx context.Context, email string) error {
	return s.client.Del(ctx, verifiedKey(email)).Err()
}
