// Package sip renders the SIP OPTIONS probe and reads back the bits of a
// response that the prober cares about.
package sip

import "math/rand/v2"

// Nonce returns length pseudo-random decimal digits.
// It is only meant to tag packets for capture correlation and is not
// suitable for anything security related.
func Nonce(length int) string {
	if length <= 0 {
		return ""
	}

	digits := make([]byte, length)
	for i := range digits {
		digits[i] = '0' + byte(rand.IntN(10))
	}

	return string(digits)
}
