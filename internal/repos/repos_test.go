package repos

import (
	"testing"

	"github.com/velora-ai/velora-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("prod")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	return log
}
