package order

import (
	"fmt"
	"math/rand"
	"time"
)

// IDGenerator produces human-facing order ids.
type IDGenerator func(now time.Time) string

// GenerateOrderID returns the unix-millis timestamp followed by 4 random digits.
func GenerateOrderID(now time.Time) string {
	return fmt.Sprintf("%d%04d", now.UnixMilli(), rand.Intn(10000))
}
