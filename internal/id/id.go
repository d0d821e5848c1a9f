// Package id provides unique identifier generation for editing sessions.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique session ID.
// Format: session-<timestamp>-<random>
// Example: session-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("session-%d-%s", timestamp, random[:8])
}
