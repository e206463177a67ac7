package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface. Access tokens are
// signed with RS256; validation only ever sees the public half of the key.
type TokenServiceImpl struct {
	method     jwt.SigningMethod
	signingKey any
	verifyKey  any
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance from the engine config.
// The signing key is a PEM encoded RSA private key unless the configured
// method is HMAC based, in which case the raw bytes are used as the secret.
func NewTokenService(cfg Config, logger Logger) (TokenService, error) {
	if logger == nil {
		logger = defLogger{}
	}

	ts := &TokenServiceImpl{
		issuer:   cfg.GetIssuer(),
		audience: jwt.ClaimStrings(cfg.GetAudience()),
		logger:   logger,
	}

	method := cfg.GetSigningMethod()
	if method == "" {
		method = "RS256"
	}

	switch sm := jwt.GetSigningMethod(method); sm.(type) {
	case *jwt.SigningMethodRSA:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.GetSigningKey())
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to parse RSA signing key")
		}
		ts.method = sm
		ts.signingKey = key
		ts.verifyKey = &key.PublicKey
	case *jwt.SigningMethodHMAC:
		ts.method = sm
		ts.signingKey = cfg.GetSigningKey()
		ts.verifyKey = cfg.GetSigningKey()
	default:
		return nil, errors.New("unsupported signing method: "+method, errors.CategoryBadInput)
	}

	return ts, nil
}

// Generate creates an access token for the given identity
func (ts *TokenServiceImpl) Generate(identity Identity, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Account:  identity.Login(),
		UserRole: identity.Role(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expires, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != ts.method.Alg() {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.verifyKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}
