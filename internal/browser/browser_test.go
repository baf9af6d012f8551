package browser

import (
	"fmt"
	"strings"
	"testing"
)

// mockCommander records command executions for testing
type mockCommander struct {
	lastCommand string
	lastArgs    []string
	startError  error
}

func (m *mockCommander) Start(name string, args ...string) error {
	m.lastCommand = name
	m.lastArgs = args
	return m.startError
}

func TestOpenWithCommander_PlatformCommands(t *testing.T) {
	url := "http://localhost:8880/vote/e-1"

	tests := []struct {
		goos        string
		wantCommand string
		wantArgs    []string
	}{
		{"linux", "xdg-open", []string{url}},
		{"darwin", "open", []string{url}},
		{"windows", "rundll32", []string{"url.dll,FileProtocolHandler", url}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			mock := &mockCommander{}
			if err := OpenWithCommander(url, mock, tt.goos); err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if mock.lastCommand != tt.wantCommand {
				t.Errorf("expected command %q, got %q", tt.wantCommand, mock.lastCommand)
			}
			if len(mock.lastArgs) != len(tt.wantArgs) {
				t.Fatalf("expected args %v, got %v", tt.wantArgs, mock.lastArgs)
			}
			for i, arg := range tt.wantArgs {
				if mock.lastArgs[i] != arg {
					t.Errorf("expected args %v, got %v", tt.wantArgs, mock.lastArgs)
				}
			}
		})
	}
}

func TestOpenWithCommander_UnsupportedPlatform(t *testing.T) {
	mock := &mockCommander{}

	err := OpenWithCommander("http://localhost:8880/vote/e-1", mock, "plan9")
	if err == nil {
		t.Fatal("expected error for unsupported platform, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported platform") || !strings.Contains(err.Error(), "plan9") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenWithCommander_CommandError(t *testing.T) {
	mock := &mockCommander{startError: fmt.Errorf("command execution failed")}

	err := OpenWithCommander("http://localhost:8880/vote/e-1", mock, "linux")
	if err == nil {
		t.Fatal("expected error from commander, got nil")
	}
}

func TestOpen_CallsDefaultCommander(t *testing.T) {
	originalCommander := defaultCommander
	defer func() { defaultCommander = originalCommander }()

	mock := &mockCommander{}
	defaultCommander = mock

	url := "http://localhost:8880/vote/e-1"
	if err := Open(url); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if mock.lastCommand == "" {
		t.Error("expected the commander to be called")
	}
}
