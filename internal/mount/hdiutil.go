package mount

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"zortoshub/internal/logger"
)

// Runner executes the disk image tool with the given arguments and returns
// its combined stdout+stderr. A nonzero exit status is reported through
// exitCode, not err; err is reserved for failing to run the tool at all.
type Runner interface {
	Run(ctx context.Context, args ...string) (output string, exitCode int, err error)
}

// Hdiutil runs the macOS hdiutil binary.
type Hdiutil struct {
	Path string
}

// NewHdiutil locates hdiutil on PATH.
func NewHdiutil() (*Hdiutil, error) {
	path, err := exec.LookPath("hdiutil")
	if err != nil {
		return nil, fmt.Errorf("hdiutil not found, disk images can only be mounted on macOS: %w", err)
	}
	return &Hdiutil{Path: path}, nil
}

// Run implements Runner.
func (h *Hdiutil) Run(ctx context.Context, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, h.Path, args...)
	// Images carrying a license agreement wait for a confirmation on stdin.
	cmd.Stdin = strings.NewReader("Y\n")
	logger.Debug("[DEBUG] Running command: %s\n", strings.Join(cmd.Args, " "))

	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode(), nil
	}
	if err != nil {
		return string(out), -1, fmt.Errorf("running %s: %w", h.Path, err)
	}
	return string(out), 0, nil
}

func attachArgs(imagePath, mountPoint string) []string {
	args := []string{"attach", imagePath}
	if mountPoint != "" {
		args = append(args, "-mountpoint", mountPoint)
	}
	return args
}

func detachArgs(mountPath string, force bool) []string {
	args := []string{"detach", mountPath}
	if force {
		args = append(args, "-force")
	}
	return args
}
