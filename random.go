package users

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// refreshTokenBytes is the entropy carried by an opaque refresh token.
const refreshTokenBytes = 48

// GenerateRefreshToken returns an opaque hex-encoded session token.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// newActivationUUID returns an opaque activation token.
func newActivationUUID() string {
	return uuid.NewString()
}

// GenerateNumericCode returns a zero-padded numeric code of the given
// length, suitable for out-of-band activation.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultActivationCodeLen
	}

	max := big.NewInt(10)
	max.Exp(max, big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n), nil
}
