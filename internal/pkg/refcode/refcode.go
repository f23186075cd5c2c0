// Package refcode generates member referral codes: short, unique-looking
// mixed codes over an alphabet with the visually ambiguous characters
// (O, I, L, 0, 1) removed. Letters and digits alternate so codes read
// naturally over the phone.
package refcode

import (
	"crypto/rand"
	"sync/atomic"
	"time"
)

const (
	// Length is the standard code length.
	Length = 6

	// FallbackLength is used after repeated collisions.
	FallbackLength = 8

	letters = "ABCDEFGHJKMNPQRSTUVWXYZ"
	digits  = "23456789"
)

var counter atomic.Int64

// Generate returns a 6-character code seeded from a monotonic counter and the
// wall clock. Deterministic-looking but unpredictable enough for this use;
// uniqueness is enforced by the caller against the member directory.
func Generate() string {
	seed := counter.Add(1) + time.Now().UnixMilli()
	return fromSeed(seed, Length)
}

// GenerateLong returns an 8-character code built from crypto/rand, used as a
// fallback when the standard length keeps colliding.
func GenerateLong() string {
	b := make([]byte, FallbackLength)
	_, _ = rand.Read(b)
	code := make([]byte, FallbackLength)
	for i := range code {
		if i%2 == 0 {
			code[i] = letters[int(b[i])%len(letters)]
		} else {
			code[i] = digits[int(b[i])%len(digits)]
		}
	}
	return string(code)
}

func fromSeed(seed int64, length int) string {
	// Linear congruential generator, same constants as the classic
	// randu-style 9301/49297/233280 mix.
	random := seed
	code := make([]byte, length)
	for i := 0; i < length; i++ {
		random = (random*9301 + 49297) % 233280
		if i%2 == 0 {
			code[i] = letters[random%int64(len(letters))]
		} else {
			code[i] = digits[random%int64(len(digits))]
		}
	}
	return string(code)
}

// Alphabet reports whether every character of code belongs to the generator
// alphabet at its position parity. Used by validation and tests.
func Alphabet(code string) bool {
	for i := 0; i < len(code); i++ {
		set := letters
		if i%2 == 1 {
			set = digits
		}
		found := false
		for j := 0; j < len(set); j++ {
			if set[j] == code[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(code) > 0
}
