package usersys

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassphrase is returned when a passphrase does not
// match the stored hash
var ErrMismatchedHashAndPassphrase = goerrors.New("passphrase does not match", goerrors.CategoryAuth).
	WithTextCode("PASSPHRASE_MISMATCH").
	WithCode(http.StatusUnauthorized)

// PassphraseHasher derives and compares passphrase hashes. The plaintext
// never leaves the call.
type PassphraseHasher interface {
	HashPassphrase(passphrase string) (string, error)
	ComparePassphrase(passphrase, hash string) error
}

// BcryptHasher is the default PassphraseHasher
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher, cost 0 means bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// HashPassphrase will generate a passphrase hash
func (b *BcryptHasher) HashPassphrase(passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(passphrase), b.cost)
	return string(h), err
}

// ComparePassphrase will validate the given cleartext passphrase matches
// the hashed passphrase
func (b *BcryptHasher) ComparePassphrase(passphrase, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassphrase
		}
		return err
	}
	return nil
}

func normalizeHasher(h PassphraseHasher) PassphraseHasher {
	if h == nil {
		return NewBcryptHasher(0)
	}
	return h
}
