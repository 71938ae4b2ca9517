package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

type TokenID [16]byte

const (
	verificationTokenRawSize = 48
	tokenSecretSize          = 32
)

func NewTokenID() (TokenID, error) {
	var tid TokenID
	_, err := rand.Read(tid[:])
	return tid, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

func NewTokenSecret() ([tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashTokenSecret(secret [tokenSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func EncodeVerificationToken(tokenID string, secret [tokenSecretSize]byte) (string, error) {
	tid, err := ParseTokenID(tokenID)
	if err != nil {
		return "", err
	}

	var raw [verificationTokenRawSize]byte
	copy(raw[:len(tid)], tid[:])
	copy(raw[len(tid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeVerificationToken(token string) (string, [tokenSecretSize]byte, error) {
	var secret [tokenSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != verificationTokenRawSize {
		return "", secret, errors.New("invalid verification token size")
	}

	var tid TokenID
	copy(tid[:], raw[:len(tid)])
	copy(secret[:], raw[len(tid):])

	return tid.String(), secret, nil
}
