package order

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	numberAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numberSuffixLen = 8
)

var alphabetSize = big.NewInt(int64(len(numberAlphabet)))

// NewNumber returns a human-readable order number of the form
// ORD-<unix millis>-<8 base36 chars>. The random suffix gives 36^8
// combinations per millisecond.
func NewNumber(now time.Time) (string, error) {
	var b strings.Builder
	b.Grow(4 + 13 + 1 + numberSuffixLen)
	b.WriteString("ORD-")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')
	for range numberSuffixLen {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(numberAlphabet[n.Int64()])
	}
	return b.String(), nil
}
