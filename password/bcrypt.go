package password

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost matches the work factor of every hash already stored.
	DefaultCost = 10
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

// ErrPasswordTooLong is returned by Hash for inputs bcrypt would reject.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Bcrypt hashes and verifies passwords with a fixed cost.
//
// Bcrypt instances are safe for concurrent use.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher using cost, or an error when cost is outside
// the range bcrypt supports.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Hash derives a salted hash of password. The caller is released when ctx
// ends; the hash is then discarded and ctx.Err() returned.
func (b *Bcrypt) Hash(ctx context.Context, password string) ([]byte, error) {
	if len(password) > MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	type result struct {
		hash []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
		done <- result{hash: h, err: err}
	}()

	select {
	case r := <-done:
		return r.hash, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Verify reports whether password matches hash. Malformed hashes, oversized
// inputs, and a context that ends before the comparison finishes all count
// as a mismatch.
func (b *Bcrypt) Verify(ctx context.Context, password string, hash []byte) bool {
	if len(hash) == 0 {
		return false
	}

	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword(hash, []byte(password))
	}()

	select {
	case err := <-done:
		return err == nil
	case <-ctx.Done():
		return false
	}
}
