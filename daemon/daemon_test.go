package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsDaemonEnvFlag(t *testing.T) {
	t.Setenv("RADAR_DAEMON", "true")
	if !IsDaemon() {
		t.Fatalf("IsDaemon should return true when RADAR_DAEMON=true")
	}
	t.Setenv("RADAR_DAEMON", "false")
	if IsDaemon() {
		t.Fatalf("IsDaemon should return false when RADAR_DAEMON=false")
	}
}

func TestGetExecutablePathReturnsAbs(t *testing.T) {
	path, err := GetExecutablePath()
	if err != nil {
		t.Fatalf("GetExecutablePath error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %s", path)
	}
}

func TestStopDaemonMissingPIDFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)

	if err := StopDaemon(); err == nil {
		t.Fatalf("expected error when pid file is missing")
	}
}

// StartDaemon and RestartDaemon spawn real processes; they are covered
// manually rather than in unit tests.
