package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"bogus", log.InfoLevel},
	}
	for _, tt := range tests {
		entry := New("order-service", tt.level)
		if entry.Logger.GetLevel() != tt.want {
			t.Fatalf("level %q: expected %s, got %s", tt.level, tt.want, entry.Logger.GetLevel())
		}
		if entry.Data["service"] != "order-service" {
			t.Fatalf("missing service field: %v", entry.Data)
		}
		if _, ok := entry.Logger.Formatter.(*log.JSONFormatter); !ok {
			t.Fatalf("expected JSON formatter")
		}
	}
}
