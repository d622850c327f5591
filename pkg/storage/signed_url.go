package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token purposes.
const (
	PurposeUpload   = "upload"
	PurposeDownload = "download"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SignedURLSigner creates and validates HMAC tokens that grant one purpose on one storage id.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithTTL returns a copy of the signer sharing its secret but issuing tokens with ttl.
func (s *SignedURLSigner) WithTTL(ttl time.Duration) *SignedURLSigner {
	clone := *s
	if ttl > 0 {
		clone.ttl = ttl
	}
	return &clone
}

// Generate returns a token allowing purpose on subject until the returned expiry.
func (s *SignedURLSigner) Generate(purpose, subject string) (string, time.Time, error) {
	if purpose == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("purpose and subject required")
	}
	if strings.Contains(purpose, ".") || strings.Contains(subject, ".") {
		return "", time.Time{}, fmt.Errorf("purpose and subject must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(purpose, subject, ts)
	return strings.Join([]string{purpose, subject, ts, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the embedded metadata.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (purpose, subject string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrInvalidToken
	}
	purpose, subject = parts[0], parts[1]
	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	expected := s.sign(purpose, subject, parts[2])
	if !hmac.Equal([]byte(expected), []byte(parts[3])) {
		return "", "", time.Time{}, ErrInvalidToken
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return purpose, subject, expiresAt, nil
}

// Verify parses token and checks that it was issued for purpose, returning its subject.
func (s *SignedURLSigner) Verify(token, purpose string) (string, error) {
	got, subject, _, err := s.Parse(token, false)
	if err != nil {
		return "", err
	}
	if got != purpose {
		return "", ErrInvalidToken
	}
	return subject, nil
}

func (s *SignedURLSigner) sign(purpose, subject, ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(purpose + "|" + subject + "|" + ts))
	return hex.EncodeToString(mac.Sum(nil))
}
