package claim

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chargeslot/backend/services/reservations-service/internal/models"
)

const issuer = "reservations-service"

// ErrInvalidToken is returned for malformed, forged or expired claim tokens.
var ErrInvalidToken = errors.New("claim: invalid token")

// tokenClaims is the JWT payload carrying a verification claim.
type tokenClaims struct {
	OwnerID     string `json:"owner_id"`
	StationID   string `json:"station_id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
	jwt.RegisteredClaims
}

// Codec signs verification claims into compact tokens and parses them back.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec returns an HS256 codec. Tokens expire after ttl (one day when ttl <= 0).
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign encodes c as a signed token suitable for a QR code.
func (c *Codec) Sign(v models.VerificationClaim) (string, error) {
	if v.ReservationID == "" {
		return "", errors.New("claim: reservation id is required")
	}
	if len(c.secret) == 0 {
		return "", errors.New("claim: signing secret is empty")
	}

	now := c.now().UTC()
	payload := tokenClaims{
		OwnerID:     v.OwnerID,
		StationID:   v.StationID,
		ScheduledAt: v.ScheduledAt.UTC().Format(time.RFC3339Nano),
		Status:      string(v.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   v.ReservationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
}

// Parse verifies token and returns the claim it carries.
func (c *Codec) Parse(token string) (models.VerificationClaim, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(c.now))
	if err != nil {
		return models.VerificationClaim{}, errors.Join(ErrInvalidToken, err)
	}

	payload, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || payload.Subject == "" {
		return models.VerificationClaim{}, ErrInvalidToken
	}
	scheduledAt, err := time.Parse(time.RFC3339Nano, payload.ScheduledAt)
	if err != nil {
		return models.VerificationClaim{}, errors.Join(ErrInvalidToken, err)
	}
	return models.VerificationClaim{
		ReservationID: payload.Subject,
		OwnerID:       payload.OwnerID,
		StationID:     payload.StationID,
		ScheduledAt:   scheduledAt.UTC(),
		Status:        models.Status(payload.Status),
	}, nil
}
