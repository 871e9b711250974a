package sealer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// Sealer produces opaque reservation references: AES-GCM sealed
// reservation/user id pairs that can be handed to users (in notifications,
// confirmation emails) without exposing raw database ids.
type Sealer struct {
	key []byte
}

// New builds a Sealer from a base64-encoded 256-bit key.
func New(base64Key string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("confirmation key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("confirmation key must decode to 32 bytes, got %d", len(key))
	}
	return &Sealer{key: key}, nil
}

// Seal creates an opaque reference for the reservation/user pair.
func (s *Sealer) Seal(reservationID, userID string) (string, error) {
	plaintext := []byte(reservationID + ":" + userID)

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open recovers the reservation and user ids from an opaque reference.
func (s *Sealer) Open(token string) (reservationID, userID string, err error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed reference: %w", err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	if len(data) < aesgcm.NonceSize() {
		return "", "", fmt.Errorf("malformed reference: too short")
	}

	nonce, ct := data[:aesgcm.NonceSize()], data[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", "", fmt.Errorf("reference failed authentication: %w", err)
	}

	parts := strings.SplitN(string(plaintext), ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed reference payload")
	}

	return parts[0], parts[1], nil
}
