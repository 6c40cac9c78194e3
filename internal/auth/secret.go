package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinSchedulerKeyLength is the shortest scheduler key ticketctl will hash.
const MinSchedulerKeyLength = 16

// ErrWeakSecret is returned for scheduler keys below MinSchedulerKeyLength.
var ErrWeakSecret = errors.New("scheduler key too short")

// HashSecret bcrypt-hashes a scheduler key. Surrounding whitespace is dropped
// so keys pasted from files or env vars hash the same.
func HashSecret(secret string, cost int) (string, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < MinSchedulerKeyLength {
		return "", ErrWeakSecret
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret checks a presented key against its stored hash.
func CompareSecret(hashed, presented string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(strings.TrimSpace(presented)))
}
