package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"

	"missionctl/core/utils"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword derives an argon2id hash of password using a fresh random
// salt and the server pepper. Both hash and salt are returned base64-encoded.
func HashPassword(password, pepper string) (hash, salt string, err error) {
	rawSalt, err := utils.RandBytes(saltLen)
	if err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(password, pepper, rawSalt)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(rawSalt), nil
}

func VerifyPassword(password, pepper, hash, salt string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	got := deriveKey(password, pepper, rawSalt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// MustHashPassword panics on failure. Intended for fixtures and seeding.
func MustHashPassword(password, pepper string) (hash, salt string) {
	hash, salt, err := HashPassword(password, pepper)
	if err != nil {
		panic(err)
	}
	return hash, salt
}

func deriveKey(password, pepper string, salt []byte) []byte {
	return argon2.IDKey([]byte(password+pepper), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
