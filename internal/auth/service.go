package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"backend-fogtrek/internal/db"
)

const accessTokenTTL = 24 * time.Hour

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	DeviceID  string `json:"device_id"`
	DeviceKey string `json:"device_key"`
}

type TokenRequest struct {
	DeviceID  string `json:"device_id"`
	DeviceKey string `json:"device_key"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func NewService(secret string, q db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
	}
}

// Register stores a device with its bcrypt-hashed key.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if req.DeviceID == "" || req.DeviceKey == "" {
		return errors.New("device_id and device_key required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.DeviceKey), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO devices (id, key_hash)
		VALUES ($1,$2)
		ON CONFLICT (id) DO NOTHING
	`, req.DeviceID, string(hash))
	return err
}

// Token verifies the device key and issues an access token.
func (s *Service) Token(ctx context.Context, req TokenRequest) (TokenResponse, error) {
	var hash string
	row := s.db.QueryRow(ctx, `SELECT key_hash FROM devices WHERE id=$1`, req.DeviceID)
	if err := row.Scan(&hash); err != nil {
		return TokenResponse{}, errors.New("unknown device")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.DeviceKey)); err != nil {
		return TokenResponse{}, errors.New("invalid device key")
	}

	token, err := s.signToken(req.DeviceID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(accessTokenTTL.Seconds()),
	}, nil
}

// ValidateAccessToken returns the device id carried by a valid token.
func (s *Service) ValidateAccessToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", errors.New("token invalid")
	}
	return claims.DeviceID, nil
}

func (s *Service) signToken(deviceID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
