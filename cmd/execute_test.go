package cmd

import (
	"os"
	"testing"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"cambio"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestExecute_Version(t *testing.T) {
	withArgs(t, "version")
	if err := Execute(); err != nil {
		t.Errorf("Execute(version) error = %v, want nil", err)
	}
}

func TestExecute_Help(t *testing.T) {
	withArgs(t, "help")
	if err := Execute(); err != nil {
		t.Errorf("Execute(help) error = %v, want nil", err)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	withArgs(t, "bogus")
	if err := Execute(); err == nil {
		t.Error("Execute(bogus) error = nil, want unknown command error")
	}
}

func TestInitLogger_DebugLevel(t *testing.T) {
	t.Setenv("CAMBIO_DEBUG", "1")
	logger := initLogger()
	if logger == nil {
		t.Fatal("initLogger() returned nil")
	}
}
