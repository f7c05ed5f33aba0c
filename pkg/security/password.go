package security

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed = errors.New("pin hashing failed")
	ErrInvalidPin    = errors.New("pin must be 4 to 6 digits")
	ErrPinMismatch   = errors.New("pin does not match")

	pinPattern = regexp.MustCompile(`^\d{4,6}$`)
)

// PinHasher hashes and verifies numeric login PINs.
type PinHasher interface {
	Hash(pin string) (string, error)
	Compare(hashedPin, pin string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new pin hasher using bcrypt
func NewBcryptHasher(cost int) PinHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func ValidPin(pin string) bool {
	return pinPattern.MatchString(pin)
}

func (b *bcryptHasher) Hash(pin string) (string, error) {
	if !ValidPin(pin) {
		return "", ErrInvalidPin
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedPin, pin string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPin), []byte(pin)); err != nil {
		return ErrPinMismatch
	}
	return nil
}
