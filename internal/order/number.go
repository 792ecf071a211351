package order

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const numberPrefix = "JESS"

// NewNumber builds the human-facing order number: brand prefix, millisecond
// timestamp, then 32 random bits so concurrent checkouts in the same
// millisecond cannot collide.
func NewNumber() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("%s-%d-%s", numberPrefix, time.Now().UnixMilli(), strings.ToUpper(hex.EncodeToString(b[:])))
}
