package cli

import (
	"fmt"
	"time"
)

// parseTimeFlag parses an optional RFC3339 flag value. An empty value yields nil.
func parseTimeFlag(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", flag, err)
	}
	return &t, nil
}
