package logger

import (
	"context"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "defaults", config: Config{}, wantErr: false},
		{name: "development console", config: Config{Level: "debug", Development: true, Format: "console"}, wantErr: false},
		{name: "production json", config: Config{Level: "info", Format: "json"}, wantErr: false},
		{name: "invalid level", config: Config{Level: "not-a-level"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if log == nil {
					t.Fatal("New() returned nil logger")
				}
				log.Info("smoke test")
				_ = log.Sync()
			}
		})
	}
}

func TestContextLogger(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), log)
	if FromContext(ctx) == nil {
		t.Fatal("FromContext() returned nil after WithLogger")
	}

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() should fall back to a no-op logger, not nil")
	}
	if FromContext(nil) == nil { //nolint:staticcheck // explicitly exercising the nil-context fallback
		t.Fatal("FromContext(nil) should fall back to a no-op logger, not nil")
	}
}

func TestWithComponent(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tagged := WithComponent(log, "classifier")
	if tagged == nil {
		t.Fatal("WithComponent() returned nil")
	}
}

func TestNewInvalidLevelMessage(t *testing.T) {
	_, err := New(Config{Level: "bogus"})
	if err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected error mentioning invalid level, got %v", err)
	}
}
