// Package mount attaches and detaches macOS disk images through hdiutil.
//
// hdiutil only offers a line-oriented status report, so every attach is
// classified by the parser in parser.go into busy, invalid image, mounted or
// unknown, and only the busy bucket (plus a mount point that is reported but
// not yet visible) is retried.
package mount

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"zortoshub/internal/logger"
)

// State is a step of the attach/detach state machine.
type State string

const (
	StateIdle          State = "idle"
	StateCheckingStale State = "checking-stale"
	StateDetaching     State = "detaching"
	StateAttaching     State = "attaching"
	StateParsing       State = "parsing-output"
	StateBusyRetry     State = "busy-retry"
	StateMounted       State = "mounted"
	StateFailed        State = "failed"
)

// Config bounds the retry loop.
type Config struct {
	// MaxAttempts is the number of attach invocations before giving up.
	MaxAttempts int
	// BusyRetryDelay is waited between attempts.
	BusyRetryDelay time.Duration
	// SettleDelay is waited after force-detaching a stale mount.
	SettleDelay time.Duration
	// MountRoot is the directory prefix hdiutil reports mount points under.
	MountRoot string
}

// DefaultConfig matches hdiutil's observed timing on a typical Mac.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BusyRetryDelay: 2 * time.Second,
		SettleDelay:    2 * time.Second,
		MountRoot:      DefaultMountRoot,
	}
}

// Handle is a live attached volume. The holder must call Mounter.Detach.
type Handle struct {
	MountPath string
	ImagePath string
}

// Attempt is one attach iteration.
type Attempt struct {
	ImagePath string
	Number    int
	Output    string
	// MountPath is set only when the filesystem confirmed the mount.
	MountPath string
}

// Mounter drives attach and detach. It is not safe for concurrent use; the
// installer holds a process lock while a Mounter is in use.
type Mounter struct {
	cfg    Config
	runner Runner
	sleep  func(ctx context.Context, d time.Duration) error
	exists func(path string) bool
	onStep func(from, to State)
	state  State
}

// Option customizes a Mounter.
type Option func(*Mounter)

// WithSleep replaces the delay function. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Mounter) { m.sleep = sleep }
}

// WithExists replaces the filesystem probe used for images and mount points.
func WithExists(exists func(path string) bool) Option {
	return func(m *Mounter) { m.exists = exists }
}

// WithTransitionHook observes every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(m *Mounter) { m.onStep = fn }
}

// New returns a Mounter using runner for every hdiutil invocation.
func New(runner Runner, cfg Config, opts ...Option) *Mounter {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MountRoot == "" {
		cfg.MountRoot = DefaultMountRoot
	}
	m := &Mounter{
		cfg:    cfg,
		runner: runner,
		sleep:  sleepContext,
		exists: pathExists,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports where the machine currently is.
func (m *Mounter) State() State {
	return m.state
}

// Attach mounts imagePath at the location hdiutil picks under the mount root.
func (m *Mounter) Attach(ctx context.Context, imagePath string) (*Handle, error) {
	return m.AttachAt(ctx, imagePath, "")
}

// AttachAt mounts imagePath, at mountPoint when it is non-empty.
func (m *Mounter) AttachAt(ctx context.Context, imagePath, mountPoint string) (*Handle, error) {
	if abs, err := filepath.Abs(imagePath); err == nil {
		imagePath = abs
	}
	if !m.exists(imagePath) {
		m.transition(StateFailed)
		return nil, &MountError{Kind: ErrFileNotFound, Path: imagePath}
	}

	m.transition(StateCheckingStale)
	m.detachStale(ctx, imagePath)

	var attempts []Attempt
	for n := 1; ; n++ {
		m.transition(StateAttaching)
		out, code, err := m.runner.Run(ctx, attachArgs(imagePath, mountPoint)...)
		if err != nil {
			m.transition(StateFailed)
			return nil, fmt.Errorf("attaching %s: %w", imagePath, err)
		}
		logger.Debug("[DEBUG] hdiutil attach attempt %d/%d exited %d:\n%s\n", n, m.cfg.MaxAttempts, code, out)

		m.transition(StateParsing)
		attempt := Attempt{ImagePath: imagePath, Number: n, Output: out}
		outcome := Classify(out, m.cfg.MountRoot)
		if mountPoint != "" {
			outcome = ClassifyMountPoint(out, mountPoint)
		}

		switch outcome.Kind {
		case OutcomeMounted:
			if m.exists(outcome.MountPath) {
				attempt.MountPath = outcome.MountPath
				m.transition(StateMounted)
				logger.Debug("[DEBUG] %s mounted at %s\n", imagePath, outcome.MountPath)
				return &Handle{MountPath: outcome.MountPath, ImagePath: imagePath}, nil
			}
			attempts = append(attempts, attempt)
			if n >= m.cfg.MaxAttempts {
				m.transition(StateFailed)
				return nil, &MountError{Kind: ErrMountNotVisible, Path: imagePath, Attempts: attempts, Output: out,
					Err: fmt.Errorf("%s reported but not present", outcome.MountPath)}
			}
			logger.Warn("[WARN] %s not visible yet, retrying (%d/%d)...\n", outcome.MountPath, n, m.cfg.MaxAttempts)

		case OutcomeBusy:
			attempts = append(attempts, attempt)
			if n >= m.cfg.MaxAttempts {
				m.transition(StateFailed)
				return nil, &MountError{Kind: ErrResourceBusy, Path: imagePath, Attempts: attempts, Output: out}
			}
			logger.Warn("[WARN] Mount busy, retrying (%d/%d)...\n", n, m.cfg.MaxAttempts)

		case OutcomeInvalidImage:
			attempts = append(attempts, attempt)
			m.transition(StateFailed)
			return nil, &MountError{Kind: ErrInvalidImage, Path: imagePath, Attempts: attempts, Output: out,
				Err: errors.New(outcome.Marker)}

		default:
			attempts = append(attempts, attempt)
			m.transition(StateFailed)
			var cause error
			if code != 0 {
				cause = fmt.Errorf("hdiutil exited with status %d", code)
			}
			return nil, &MountError{Kind: ErrUnrecognizedOutput, Path: imagePath, Attempts: attempts, Output: out, Err: cause}
		}

		m.transition(StateBusyRetry)
		if err := m.sleep(ctx, m.cfg.BusyRetryDelay); err != nil {
			m.transition(StateFailed)
			return nil, err
		}
	}
}

// Detach unmounts h. A mount point that no longer exists counts as detached.
// Any other failure is returned as ErrDetachFailed; callers treat it as a warning.
func (m *Mounter) Detach(ctx context.Context, h *Handle, force bool) error {
	if h == nil {
		return nil
	}
	err := m.detach(ctx, h.MountPath, force)
	m.transition(StateIdle)
	return err
}

func (m *Mounter) detach(ctx context.Context, mountPath string, force bool) error {
	m.transition(StateDetaching)
	if !m.exists(mountPath) {
		logger.Debug("[DEBUG] %s is not mounted, nothing to detach\n", mountPath)
		return nil
	}
	out, code, err := m.runner.Run(ctx, detachArgs(mountPath, force)...)
	if err != nil {
		return &MountError{Kind: ErrDetachFailed, Path: mountPath, Err: err}
	}
	if code != 0 {
		return &MountError{Kind: ErrDetachFailed, Path: mountPath, Output: out,
			Err: fmt.Errorf("hdiutil exited with status %d", code)}
	}
	logger.Debug("[DEBUG] Detached %s\n", mountPath)
	return nil
}

// detachStale force-detaches every existing mount of imagePath. Failures are
// logged and the attach goes ahead regardless.
func (m *Mounter) detachStale(ctx context.Context, imagePath string) {
	info, code, err := m.runner.Run(ctx, "info")
	if err != nil || code != 0 {
		logger.Warn("[WARN] Could not list attached images (status %d): %v\n", code, err)
		return
	}
	points := MountPointsFor(info, imagePath, m.cfg.MountRoot)
	if len(points) == 0 {
		return
	}
	for _, p := range points {
		logger.Warn("[WARN] Detaching previous mount %s\n", p)
		if err := m.detach(ctx, p, true); err != nil {
			logger.Warn("[WARN] Failed to detach previous mount %s: %v\n", p, err)
		}
	}
	if err := m.sleep(ctx, m.cfg.SettleDelay); err != nil {
		logger.Debug("[DEBUG] Settle delay interrupted: %v\n", err)
	}
}

func (m *Mounter) transition(to State) {
	from := m.state
	m.state = to
	if m.onStep != nil && from != to {
		m.onStep(from, to)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
