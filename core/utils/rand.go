package utils

import (
	"crypto/rand"
	"encoding/hex"
)

func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandHex returns n lowercase hex characters from a CSPRNG. n must be even.
func RandHex(n int) (string, error) {
	b, err := RandBytes(n / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

const randAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func RandString(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = randAlphabet[int(v)%len(randAlphabet)]
	}
	return string(out), nil
}
