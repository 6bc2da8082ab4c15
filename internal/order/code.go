package order

import (
	"fmt"
	"math/rand"
	"time"
)

// NewCode builds the human-facing order label: a timestamp plus four random
// digits. It is a display string only; uniqueness is carried by the order's
// UUID primary key, so an unlikely label collision is harmless.
func NewCode(now time.Time) string {
	return fmt.Sprintf("%s-%04d", now.UTC().Format("20060102150405"), rand.Intn(10000))
}
