// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenPurpose selects the secret and lifetime used to sign a token.
type TokenPurpose string

// Token purposes.
const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
	PurposeReset   TokenPurpose = "reset"
)

// TokenConfig holds the signing secret and lifetime for one purpose.
type TokenConfig struct {
	Secret   []byte
	Lifetime time.Duration
}

// SignerConfig configures a TokenSigner.
type SignerConfig struct {
	Access  TokenConfig
	Refresh TokenConfig
	Reset   TokenConfig

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenSigner issues and verifies HS256 JWTs carrying a user id and expiry.
type TokenSigner struct {
	configs map[TokenPurpose]TokenConfig
	now     func() time.Time
}

// NewTokenSigner validates the configuration and creates a TokenSigner.
func NewTokenSigner(cfg SignerConfig) (*TokenSigner, error) {
	configs := map[TokenPurpose]TokenConfig{
		PurposeAccess:  cfg.Access,
		PurposeRefresh: cfg.Refresh,
		PurposeReset:   cfg.Reset,
	}
	for purpose, c := range configs {
		if len(c.Secret) == 0 {
			return nil, oops.Code("SIGNER_INVALID_CONFIG").
				With("purpose", string(purpose)).
				Errorf("%s token secret is required", purpose)
		}
		if c.Lifetime <= 0 {
			return nil, oops.Code("SIGNER_INVALID_CONFIG").
				With("purpose", string(purpose)).
				Errorf("%s token lifetime must be positive", purpose)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenSigner{configs: configs, now: now}, nil
}

// Lifetime returns the configured lifetime for a purpose.
func (s *TokenSigner) Lifetime(purpose TokenPurpose) time.Duration {
	return s.configs[purpose].Lifetime
}

// Issue signs a token for subjectID that expires after the purpose's lifetime.
// The audience claim names the purpose. Every token carries a fresh jti, so two
// tokens issued within the same second differ.
func (s *TokenSigner) Issue(purpose TokenPurpose, subjectID ulid.ULID) (string, error) {
	c, ok := s.configs[purpose]
	if !ok {
		return "", oops.Code("SIGNER_UNKNOWN_PURPOSE").With("purpose", string(purpose)).Errorf("unknown token purpose")
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subjectID.String(),
		Audience:  jwt.ClaimStrings{string(purpose)},
		ID:        ulid.Make().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.Lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.Secret)
	if err != nil {
		return "", oops.Code("SIGNER_SIGN_FAILED").With("purpose", string(purpose)).Wrap(err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and audience of token and returns its subject.
// A token issued for another purpose fails even when the secrets are equal.
// Expired tokens yield ErrExpiredToken; everything else that fails yields ErrMalformedToken.
func (s *TokenSigner) Verify(purpose TokenPurpose, token string) (ulid.ULID, error) {
	c, ok := s.configs[purpose]
	if !ok {
		return ulid.ULID{}, oops.Code("SIGNER_UNKNOWN_PURPOSE").With("purpose", string(purpose)).Errorf("unknown token purpose")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(string(purpose)),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ulid.ULID{}, oops.Code(CodeExpiredToken).
				With("purpose", string(purpose)).
				Wrap(ErrExpiredToken)
		}
		return ulid.ULID{}, oops.Code(CodeMalformedToken).
			With("purpose", string(purpose)).
			With("reason", err.Error()).
			Wrap(ErrMalformedToken)
	}

	if claims.Subject == "" {
		return ulid.ULID{}, oops.Code(CodeMalformedToken).
			With("purpose", string(purpose)).
			With("reason", "missing subject").
			Wrap(ErrMalformedToken)
	}

	subject, err := ulid.Parse(claims.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeMalformedToken).
			With("purpose", string(purpose)).
			With("reason", "unparseable subject").
			Wrap(ErrMalformedToken)
	}

	return subject, nil
}
