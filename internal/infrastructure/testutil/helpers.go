package testutil

import (
	"testing"
)

// TempDir creates a temporary directory for tests. Callers that point HOME
// at it get an isolated config dir, salt file, and database location.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
