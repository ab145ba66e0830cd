// Package fairness holds the provably fair derivations: seed commitment, board layout
// and the per-row elimination tile. Every function here is pure apart from seed
// generation, and must stay bit-compatible with sessions that were already revealed.
package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	SecretSeedBytes = 32 // 256 bits
	ClientSeedBytes = 16 // 128 bits
)

// ErrRandomSource is returned when the secure random source cannot be read.
var ErrRandomSource = errors.New("secure random source unavailable")

// GenerateSecretSeed returns 256 bits from crypto/rand as 64 lowercase hex characters.
func GenerateSecretSeed() (string, error) {
	return readHex(rand.Reader, SecretSeedBytes)
}

// GenerateClientSeed returns 128 bits of public auxiliary randomness. It has no
// influence on the board or the elimination tiles.
func GenerateClientSeed() (string, error) {
	return readHex(rand.Reader, ClientSeedBytes)
}

// GenerateSeedFrom hex encodes n bytes read from r.
func GenerateSeedFrom(r io.Reader, n int) (string, error) {
	return readHex(r, n)
}

func readHex(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return hex.EncodeToString(buf), nil
}

// Commit is the public SHA-256 commitment of a seed, hex encoded.
func Commit(seed string) string {
	return sha256Hex(seed)
}

// VerifyCommitment reports whether commitment is exactly Commit(seed).
func VerifyCommitment(seed, commitment string) bool {
	expected := Commit(seed)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(commitment)) == 1
}

func sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func sha256Sum(input string) [sha256.Size]byte {
	return sha256.Sum256([]byte(input))
}
