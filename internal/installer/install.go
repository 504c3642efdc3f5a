// Package installer sequences a catalog install: download, then hand the
// payload to the matching handler (attach a disk image, extract an archive or
// run the package installer), then reveal the result in Finder.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"zortoshub/internal/catalog"
	"zortoshub/internal/download"
	"zortoshub/internal/history"
	"zortoshub/internal/logger"
	"zortoshub/internal/mount"
	"zortoshub/internal/state"
)

// ErrUnsupportedPayload is returned for installer files of unknown type.
var ErrUnsupportedPayload = errors.New("unsupported installer type")

// Kind is the payload type of a downloaded installer.
type Kind int

const (
	KindUnknown Kind = iota
	KindDiskImage
	KindArchive
	KindPackage
)

func (k Kind) String() string {
	switch k {
	case KindDiskImage:
		return "disk image"
	case KindArchive:
		return "archive"
	case KindPackage:
		return "package"
	}
	return "unknown"
}

// DetectKind classifies an installer by file name.
func DetectKind(filename string) Kind {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".dmg"):
		return KindDiskImage
	case strings.HasSuffix(lower, ".pkg"), strings.HasSuffix(lower, ".mpkg"):
		return KindPackage
	}
	for _, ext := range archiveExts {
		if strings.HasSuffix(lower, ext) {
			return KindArchive
		}
	}
	return KindUnknown
}

// Downloader fetches a URL into a local file.
type Downloader interface {
	Fetch(ctx context.Context, rawURL, destPath string, onProgress download.ProgressFunc) (*download.Result, error)
}

// Mounter attaches and detaches disk images.
type Mounter interface {
	Attach(ctx context.Context, imagePath string) (*mount.Handle, error)
	Detach(ctx context.Context, h *mount.Handle, force bool) error
}

// Recorder stores install history.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	logger.Debug("[DEBUG] Running command: %s\n", strings.Join(cmd.Args, " "))
	return cmd.CombinedOutput()
}

// Options locate the installer's files.
type Options struct {
	DownloadDir     string
	ApplicationsDir string
	StateFile       string
	// Reveal opens the mounted volume or extracted folder in Finder.
	Reveal bool
	// OnProgress receives download percentages.
	OnProgress download.ProgressFunc
}

// Installer runs installs one at a time.
type Installer struct {
	opts       Options
	downloader Downloader
	mounter    Mounter
	history    Recorder
	run        CommandRunner
	now        func() time.Time
}

// Option customizes an Installer.
type Option func(*Installer)

// WithHistory records every install attempt in r.
func WithHistory(r Recorder) Option {
	return func(i *Installer) { i.history = r }
}

// WithCommandRunner replaces the runner for open and installer.
func WithCommandRunner(r CommandRunner) Option {
	return func(i *Installer) { i.run = r }
}

// New returns an Installer.
func New(opts Options, d Downloader, m Mounter, options ...Option) *Installer {
	i := &Installer{
		opts:       opts,
		downloader: d,
		mounter:    m,
		run:        execRunner{},
		now:        time.Now,
	}
	for _, o := range options {
		o(i)
	}
	return i
}

// Session is the result of an install. For disk images it owns the mount
// until Close or Keep is called.
type Session struct {
	App      catalog.App
	Kind     Kind
	Download *download.Result
	Mount    *mount.Handle
	// Path is what was revealed: the mount point, the extracted bundle or
	// the applications folder for packages.
	Path string

	inst *Installer
}

// Install downloads app and hands it to the payload handler.
func (i *Installer) Install(ctx context.Context, app catalog.App) (*Session, error) {
	if app.URL == "" {
		return nil, fmt.Errorf("%s has no download URL", app.Name)
	}
	filename := app.FileName()
	kind := DetectKind(filename)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayload, filename)
	}

	unlock, err := acquireLock(i.opts.DownloadDir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dest := filepath.Join(i.opts.DownloadDir, filename)
	logger.Info("[INFO] Downloading %s...\n", app.Name)
	res, err := i.downloader.Fetch(ctx, app.URL, dest, i.opts.OnProgress)
	if err != nil {
		i.record(ctx, app, nil, "", err)
		return nil, fmt.Errorf("failed to download %s: %w", app.Name, err)
	}
	logger.Info("[INFO] Downloaded %s to %s\n", app.Name, res.Path)

	s := &Session{App: app, Kind: kind, Download: res, inst: i}
	switch kind {
	case KindDiskImage:
		err = i.attach(ctx, s)
	case KindArchive:
		err = i.extract(s)
	case KindPackage:
		err = i.installPackage(ctx, s)
	}
	if err != nil {
		i.record(ctx, app, res, "", err)
		return nil, err
	}

	if i.opts.Reveal && kind != KindPackage {
		if out, err := i.run.Run(ctx, "open", s.Path); err != nil {
			logger.Warn("[WARN] Could not open %s: %v %s\n", s.Path, err, strings.TrimSpace(string(out)))
		}
	}

	i.record(ctx, app, res, s.mountPath(), nil)
	return s, nil
}

func (i *Installer) attach(ctx context.Context, s *Session) error {
	logger.Info("[INFO] Mounting %s...\n", filepath.Base(s.Download.Path))
	h, err := i.mounter.Attach(ctx, s.Download.Path)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", s.App.Name, err)
	}
	s.Mount = h
	s.Path = h.MountPath
	logger.Info("[INFO] %s mounted at %s\n", s.App.Name, h.MountPath)

	if i.opts.StateFile != "" {
		err := state.Track(i.opts.StateFile, state.MountState{
			AppID:     s.App.ID,
			ImagePath: h.ImagePath,
			MountPath: h.MountPath,
			MountedAt: i.now(),
		})
		if err != nil {
			logger.Warn("[WARN] Could not record mount: %v\n", err)
		}
	}
	return nil
}

func (i *Installer) extract(s *Session) error {
	dest := filepath.Join(i.opts.DownloadDir, archiveStem(s.Download.Path))
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dest, err)
	}
	logger.Info("[INFO] Extracting %s...\n", filepath.Base(s.Download.Path))
	root, err := ExtractArchive(s.Download.Path, dest)
	if err != nil {
		return err
	}
	s.Path = root
	bundle, err := findAppBundle(root)
	if err != nil {
		logger.Warn("[WARN] %v\n", err)
		return nil
	}
	s.Path = bundle
	logger.Info("[INFO] Extracted %s\n", bundle)
	return nil
}

func (i *Installer) installPackage(ctx context.Context, s *Session) error {
	logger.Info("[INFO] Installing %s via macOS installer...\n", filepath.Base(s.Download.Path))
	out, err := i.run.Run(ctx, "sudo", "installer", "-pkg", s.Download.Path, "-target", "/")
	if err != nil {
		return fmt.Errorf("package installation failed for %s: %w\nOutput: %s", s.App.Name, err, out)
	}
	logger.Debug("[DEBUG] installer output:\n%s\n", out)
	s.Path = i.opts.ApplicationsDir
	return nil
}

func (i *Installer) record(ctx context.Context, app catalog.App, res *download.Result, mountPath string, cause error) {
	if i.history == nil {
		return
	}
	e := &history.Entry{
		AppID:       app.ID,
		AppName:     app.Name,
		URL:         app.URL,
		MountPath:   mountPath,
		Status:      history.StatusInstalled,
		InstalledAt: i.now().UTC(),
	}
	if res != nil {
		e.FilePath = res.Path
		e.Bytes = res.Bytes
		e.Digest = fmt.Sprintf("%016x", res.Digest)
	}
	if mountPath != "" {
		e.Status = history.StatusMounted
	}
	if cause != nil {
		e.Status = history.StatusFailed
		e.ErrorMessage = cause.Error()
	}
	if err := i.history.Record(ctx, e); err != nil {
		logger.Warn("[WARN] Could not record install history: %v\n", err)
	}
}

func (s *Session) mountPath() string {
	if s.Mount == nil {
		return ""
	}
	return s.Mount.MountPath
}

// Close detaches the session's disk image, if any. A failed detach is only
// a warning: the volume stays listed for `zortoshub cleanup`.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.Mount == nil {
		return nil
	}
	h := s.Mount
	s.Mount = nil

	logger.Info("[INFO] Detaching %s...\n", h.MountPath)
	if err := s.inst.mounter.Detach(ctx, h, true); err != nil {
		if errors.Is(err, mount.ErrDetachFailed) {
			logger.Warn("[WARN] %v\n", err)
			return nil
		}
		return err
	}
	if s.inst.opts.StateFile != "" {
		if err := state.Untrack(s.inst.opts.StateFile, h.MountPath); err != nil {
			logger.Warn("[WARN] Could not update mount state: %v\n", err)
		}
	}
	return nil
}

// Keep leaves the volume attached. It stays listed for `zortoshub cleanup`.
func (s *Session) Keep() {
	if s == nil || s.Mount == nil {
		return
	}
	logger.Info("[INFO] Leaving %s mounted\n", s.Mount.MountPath)
	s.Mount = nil
}

// Cleanup force-detaches every mount recorded in the state file and returns
// how many were released.
func (i *Installer) Cleanup(ctx context.Context) (int, error) {
	if i.opts.StateFile == "" {
		return 0, nil
	}
	st := state.LoadState(i.opts.StateFile)
	released := 0
	for _, m := range st.List() {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		h := &mount.Handle{MountPath: m.MountPath, ImagePath: m.ImagePath}
		if err := i.mounter.Detach(ctx, h, true); err != nil {
			logger.Warn("[WARN] Could not detach %s: %v\n", m.MountPath, err)
			continue
		}
		logger.Info("[INFO] Released %s (%s)\n", m.MountPath, m.AppID)
		st.Remove(m.MountPath)
		released++
	}
	if err := state.SaveState(i.opts.StateFile, st); err != nil {
		return released, err
	}
	return released, nil
}
