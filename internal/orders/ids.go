package orders

import (
	"crypto/rand"
	"fmt"
)

// Pickup codes skip glyphs that read ambiguously on a phone screen held up
// at a counter (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func randomCode(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("read random: %w", err))
	}
	out := make([]byte, n)
	for i, c := range b {
		out[i] = codeAlphabet[int(c)%len(codeAlphabet)]
	}
	return string(out)
}

// NewOrderNumber returns a short human-legible order number.
func NewOrderNumber() string {
	return "RB-" + randomCode(8)
}

// NewPickupCode returns the code the customer presents at collection time.
func NewPickupCode() string {
	return randomCode(6)
}
