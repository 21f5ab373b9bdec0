package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomID returns "{prefix}{hex}" with hexLength random hex digits.
// Not cryptographically secure; meant for log correlation ids.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex returns a random hexadecimal string of the given length.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)
	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}
	return builder.String()
}
