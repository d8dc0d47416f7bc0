// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/waypoint/internal/config"
)

// Claims are the JWT claims Waypoint reads. The user id travels in the
// registered "sub" claim.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates HS256 tokens. Waypoint only validates in
// production; signing exists for tests and waypointctl.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager returns a manager for cfg. JWT_SECRET must be set.
//
//	jwtManager, err := auth.NewJWTManager(&cfg.Security)
func NewJWTManager(cfg *config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
	}, nil
}

// GenerateToken signs a token for userID valid for the configured timeout.
func (m *JWTManager) GenerateToken(userID, name, role string) (string, error) {
	return m.GenerateTokenWithTTL(userID, name, role, m.timeout)
}

// GenerateTokenWithTTL signs a token for userID valid for ttl.
func (m *JWTManager) GenerateTokenWithTTL(userID, name, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature, algorithm and time claims of
// tokenString and returns its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}
