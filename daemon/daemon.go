package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFile = "polyradar.pid"

// IsDaemon reports whether the process was launched as a background
// daemon. The spawning parent marks the child via environment.
func IsDaemon() bool {
	return os.Getenv("RADAR_DAEMON") == "true"
}

// StartDaemon re-launches the current executable in the background
// with the given arguments and records its PID for later management.
func StartDaemon(args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Env = append(os.Environ(), "RADAR_DAEMON=true")
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	fmt.Printf("Daemon started with PID %d (pid file %s)\n", cmd.Process.Pid, pidFile)
	return nil
}

// StopDaemon signals the recorded daemon process to shut down. SIGTERM
// is used so the process can close open positions and flush the
// recorder before exiting.
func StopDaemon() error {
	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("failed to parse PID: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process: %w", err)
	}

	if err := os.Remove(pidFile); err != nil {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	fmt.Printf("Daemon with PID %d has been signalled to stop.\n", pid)
	return nil
}

// RestartDaemon stops the running daemon, if any, and starts a new one.
func RestartDaemon(args []string) error {
	if err := StopDaemon(); err != nil {
		fmt.Printf("Warning: could not stop daemon: %v\n", err)
	}
	return StartDaemon(args)
}

// GetExecutablePath returns the absolute path of the current binary.
func GetExecutablePath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Abs(execPath)
}
