package installer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zortoshub/internal/catalog"
	"zortoshub/internal/download"
	"zortoshub/internal/history"
	"zortoshub/internal/mount"
	"zortoshub/internal/state"
)

type fakeMounter struct {
	mountPath string
	attachErr error
	detachErr error
	attached  []string
	detached  []*mount.Handle
	forced    []bool
}

func (f *fakeMounter) Attach(_ context.Context, imagePath string) (*mount.Handle, error) {
	f.attached = append(f.attached, imagePath)
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return &mount.Handle{MountPath: f.mountPath, ImagePath: imagePath}, nil
}

func (f *fakeMounter) Detach(_ context.Context, h *mount.Handle, force bool) error {
	f.detached = append(f.detached, h)
	f.forced = append(f.forced, force)
	return f.detachErr
}

type fakeCommands struct {
	calls [][]string
	err   error
}

func (f *fakeCommands) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, f.err
}

type memRecorder struct {
	entries []history.Entry
}

func (m *memRecorder) Record(_ context.Context, e *history.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func serveFile(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	dir      string
	opts     Options
	mounter  *fakeMounter
	commands *fakeCommands
	recorder *memRecorder
	inst     *Installer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir: dir,
		opts: Options{
			DownloadDir:     filepath.Join(dir, "Downloads", "ZortosHub"),
			ApplicationsDir: filepath.Join(dir, "Applications"),
			StateFile:       filepath.Join(dir, "state.json"),
			Reveal:          true,
		},
		mounter:  &fakeMounter{mountPath: "/Volumes/Firefox"},
		commands: &fakeCommands{},
		recorder: &memRecorder{},
	}
	d := download.New(download.Config{ChunkSize: 1024, ProgressStep: 10, MaxAttempts: 1})
	f.inst = New(f.opts, d, f.mounter, WithHistory(f.recorder), WithCommandRunner(f.commands))
	return f
}

func TestInstallDiskImage(t *testing.T) {
	f := newFixture(t)
	body := make([]byte, 5000)
	srv := serveFile(t, body)
	app := catalog.App{ID: "firefox", Name: "Firefox", URL: srv.URL + "/firefox.dmg", Filename: "firefox.dmg"}

	s, err := f.inst.Install(context.Background(), app)
	require.NoError(t, err)

	want := filepath.Join(f.opts.DownloadDir, "firefox.dmg")
	assert.Equal(t, KindDiskImage, s.Kind)
	assert.Equal(t, want, s.Download.Path)
	assert.Equal(t, int64(5000), s.Download.Bytes)
	assert.Equal(t, "/Volumes/Firefox", s.Path)
	assert.Equal(t, []string{want}, f.mounter.attached)
	assert.Equal(t, [][]string{{"open", "/Volumes/Firefox"}}, f.commands.calls)

	tracked := state.LoadState(f.opts.StateFile).List()
	require.Len(t, tracked, 1)
	assert.Equal(t, "firefox", tracked[0].AppID)

	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, history.StatusMounted, f.recorder.entries[0].Status)
	assert.Equal(t, "/Volumes/Firefox", f.recorder.entries[0].MountPath)

	require.NoError(t, s.Close(context.Background()))
	require.Len(t, f.mounter.detached, 1)
	assert.True(t, f.mounter.forced[0])
	assert.Empty(t, state.LoadState(f.opts.StateFile).List())

	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, f.mounter.detached, 1)
}

func TestInstallDownloadFailureRecorded(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	app := catalog.App{ID: "firefox", Name: "Firefox", URL: srv.URL + "/firefox.dmg"}

	_, err := f.inst.Install(context.Background(), app)
	require.ErrorIs(t, err, download.ErrHTTPStatus)
	assert.Empty(t, f.mounter.attached)
	require.Len(t, f.recorder.entries, 1)
	assert.Equal(t, history.StatusFailed, f.recorder.entries[0].Status)
}

func TestInstallMountFailure(t *testing.T) {
	f := newFixture(t)
	f.mounter.attachErr = &mount.MountError{Kind: mount.ErrInvalidImage, Path: "x"}
	srv := serveFile(t, []byte("not a dmg"))
	app := catalog.App{ID: "firefox", Name: "Firefox", URL: srv.URL + "/firefox.dmg"}

	_, err := f.inst.Install(context.Background(), app)
	require.ErrorIs(t, err, mount.ErrInvalidImage)
	assert.Empty(t, f.commands.calls)
	assert.Empty(t, state.LoadState(f.opts.StateFile).List())
	assert.Equal(t, history.StatusFailed, f.recorder.entries[0].Status)
}

func TestSessionCloseDowngradesDetachFailure(t *testing.T) {
	f := newFixture(t)
	f.mounter.detachErr = &mount.MountError{Kind: mount.ErrDetachFailed, Path: "/Volumes/Firefox"}
	srv := serveFile(t, []byte("dmg"))

	s, err := f.inst.Install(context.Background(), catalog.App{ID: "firefox", Name: "Firefox", URL: srv.URL + "/firefox.dmg"})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, state.LoadState(f.opts.StateFile).List(), 1)
}

func TestSessionKeepThenCleanup(t *testing.T) {
	f := newFixture(t)
	srv := serveFile(t, []byte("dmg"))

	s, err := f.inst.Install(context.Background(), catalog.App{ID: "firefox", Name: "Firefox", URL: srv.URL + "/firefox.dmg"})
	require.NoError(t, err)
	s.Keep()
	require.NoError(t, s.Close(context.Background()))
	assert.Empty(t, f.mounter.detached)

	n, err := f.inst.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []bool{true}, f.mounter.forced)
	assert.Empty(t, state.LoadState(f.opts.StateFile).List())
}

func TestCleanupKeepsFailedDetaches(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, state.Track(f.opts.StateFile, state.MountState{AppID: "vlc", MountPath: "/Volumes/VLC"}))
	f.mounter.detachErr = errors.New("busy")

	n, err := f.inst.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, state.LoadState(f.opts.StateFile).List(), 1)
}

func TestInstallArchive(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, map[string]string{
		"iTerm.app/Contents/Info.plist":  "<plist/>",
		"iTerm.app/Contents/MacOS/iTerm": "bin",
		"README.txt":                     "hi",
	})
	srv := serveFile(t, data)

	s, err := f.inst.Install(context.Background(), catalog.App{ID: "iterm", Name: "iTerm", URL: srv.URL + "/iTerm2.zip"})
	require.NoError(t, err)
	assert.Equal(t, KindArchive, s.Kind)
	assert.Equal(t, filepath.Join(f.opts.DownloadDir, "iTerm2", "iTerm.app"), s.Path)
	assert.FileExists(t, filepath.Join(s.Path, "Contents", "Info.plist"))
	assert.Equal(t, [][]string{{"open", s.Path}}, f.commands.calls)
	assert.Empty(t, f.mounter.attached)
	assert.Equal(t, history.StatusInstalled, f.recorder.entries[0].Status)
	require.NoError(t, s.Close(context.Background()))
}

func TestInstallPackage(t *testing.T) {
	f := newFixture(t)
	srv := serveFile(t, []byte("xar!"))

	s, err := f.inst.Install(context.Background(), catalog.App{ID: "zoom", Name: "Zoom", URL: srv.URL + "/zoom.pkg"})
	require.NoError(t, err)
	assert.Equal(t, KindPackage, s.Kind)
	assert.Equal(t, f.opts.ApplicationsDir, s.Path)
	require.Len(t, f.commands.calls, 1)
	assert.Equal(t, []string{"sudo", "installer", "-pkg", s.Download.Path, "-target", "/"}, f.commands.calls[0])
}

func TestInstallPackageFailure(t *testing.T) {
	f := newFixture(t)
	f.commands.err = errors.New("exit status 1")
	srv := serveFile(t, []byte("xar!"))

	_, err := f.inst.Install(context.Background(), catalog.App{ID: "zoom", Name: "Zoom", URL: srv.URL + "/zoom.pkg"})
	require.Error(t, err)
	assert.Equal(t, history.StatusFailed, f.recorder.entries[0].Status)
}

func TestInstallRejectsUnknownPayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.inst.Install(context.Background(), catalog.App{ID: "x", Name: "X", URL: "https://example.com/x.exe"})
	require.ErrorIs(t, err, ErrUnsupportedPayload)

	_, err = f.inst.Install(context.Background(), catalog.App{ID: "y", Name: "Y"})
	require.Error(t, err)
	assert.Empty(t, f.recorder.entries)
}

func TestInstallLocked(t *testing.T) {
	f := newFixture(t)
	unlock, err := acquireLock(f.opts.DownloadDir)
	require.NoError(t, err)
	defer unlock()

	_, err = acquireLock(f.opts.DownloadDir)
	require.ErrorIs(t, err, ErrLocked)
}

func TestDetectKind(t *testing.T) {
	tests := map[string]Kind{
		"Firefox.dmg":      KindDiskImage,
		"zoom.PKG":         KindPackage,
		"a.zip":            KindArchive,
		"a.7z":             KindArchive,
		"a.tar.gz":         KindArchive,
		"a.tgz":            KindArchive,
		"a.tar.xz":         KindArchive,
		"setup.exe":        KindUnknown,
		"no-extension-at-": KindUnknown,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectKind(name), name)
	}
	assert.Equal(t, "disk image", KindDiskImage.String())
}
