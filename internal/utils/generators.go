package utils

import (
	"crypto/rand"
	"strings"
)

// Crockford base32 without I, L, O and U so codes read cleanly aloud.
const pickupAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GeneratePickupCode returns a short human-readable code such as
// "PU-7K3M-Q9XD" for a farmer to check at pickup.
func GeneratePickupCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	var b strings.Builder
	b.WriteString("PU-")
	for i, v := range buf {
		if i == 4 {
			b.WriteByte('-')
		}
		b.WriteByte(pickupAlphabet[int(v)%len(pickupAlphabet)])
	}
	return b.String()
}
