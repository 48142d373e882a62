package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Work factor for newly hashed passwords. High enough to resist
	// offline brute force on commodity hardware.
	bcryptCost = 12

	legacyIterationRounds = 10000
	legacySubkeyLength    = 256 / 8
	legacySaltSize        = 128 / 8
)

// TempPasswordLength is the size of generated temporary passwords.
const TempPasswordLength = 12

// Alphabet for temporary passwords. Excludes glyphs that read
// ambiguously when mailed or written down: 0/O, 1/l/I, 5/S, 8/B.
const tempPasswordChars = "abcdefghijkmnopqrstuvwxyzACDEFGHJKLMNPQRTUVWXYZ234679!@#$%&*+-="

const randomStringChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a plaintext password against a stored hash.
// Hashes written by this service are bcrypt; accounts imported from the
// previous platform carry base64 PBKDF2 hashes and take the legacy path.
func VerifyPassword(password, hash string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	return VerifyLegacyPassword(password, hash)
}

func VerifyLegacyPassword(password, hash string) bool {
	decodedHash, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	if len(decodedHash) <= legacySaltSize+1 || decodedHash[0] != 0x1 {
		return false
	}

	salt := decodedHash[1 : legacySaltSize+1]
	subkey := decodedHash[legacySaltSize+1:]

	derivedKey := pbkdf2.Key([]byte(password), salt, legacyIterationRounds, legacySubkeyLength, sha256.New)

	return subtle.ConstantTimeCompare(derivedKey, subkey) == 1
}

func GenerateRandomString(limit int) string {
	return randomFrom(randomStringChars, limit)
}

// GenerateTempPassword returns a one-time temporary password. The
// plaintext is handed to the caller exactly once and never stored.
func GenerateTempPassword() string {
	return randomFrom(tempPasswordChars, TempPasswordLength)
}

func randomFrom(chars string, limit int) string {
	result := make([]byte, limit)
	max := big.NewInt(int64(len(chars)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		result[i] = chars[n.Int64()]
	}

	return string(result)
}
