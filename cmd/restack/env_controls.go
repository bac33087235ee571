package main

import (
	"os"
	"strings"
)

func envFlagEnabled(name string) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// testModeEnabled disables prompts and spinners.
func testModeEnabled() bool {
	return envFlagEnabled("RESTACK_TEST_MODE")
}
