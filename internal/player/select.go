package player

import (
	"strings"

	"github.com/samber/lo"
)

// IsBlocked matches service against case-insensitive substrings.
func IsBlocked(service string, block []string) bool {
	lower := strings.ToLower(service)
	return lo.SomeBy(block, func(entry string) bool {
		entry = strings.ToLower(strings.TrimSpace(entry))
		return entry != "" && strings.Contains(lower, entry)
	})
}

// SelectActive returns the first service not on the block list, or "".
func SelectActive(services []string, block []string) string {
	service, _ := lo.Find(services, func(s string) bool {
		return !IsBlocked(s, block)
	})
	return service
}
