package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "firefox": {"name":"Firefox","url":"https://example.com/firefox.dmg","filename":"firefox.dmg","category":"Browsers","description":"Web browser","status":"paid"},
  "chrome":  {"name":"Chrome","url":"https://example.com/chrome.dmg","filename":"chrome.dmg","category":"Browsers","description":"Google web browser","status":"paid"},
  "vlc":     {"name":"VLC","url":"https://example.com/vlc.dmg?dl=1","category":"Media","description":"Plays anything","status":"cracked","icon":"vlc.png"}
}`

const sampleYAML = `
firefox:
  name: Firefox
  url: https://example.com/firefox.dmg
  filename: firefox.dmg
  category: Browsers
  description: Web browser
  status: paid
`

func TestLoadJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "apps.json")
	require.NoError(t, os.WriteFile(file, []byte(sampleJSON), 0644))

	c, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	ff, ok := c.Get("firefox")
	require.True(t, ok)
	assert.Equal(t, App{
		ID: "firefox", Name: "Firefox", Description: "Web browser", Category: "Browsers",
		URL: "https://example.com/firefox.dmg", Filename: "firefox.dmg", Status: StatusPaid,
	}, ff)

	vlc, _ := c.Get("vlc")
	assert.Equal(t, StatusCracked, vlc.Status)
	assert.Equal(t, "vlc.dmg", vlc.FileName())
}

func TestLoadYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "apps.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sampleYAML), 0644))

	c, err := Load(file)
	require.NoError(t, err)
	ff, ok := c.Get("firefox")
	require.True(t, ok)
	assert.Equal(t, "Firefox", ff.Name)
	assert.Equal(t, "firefox.dmg", ff.FileName())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "apps.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	_, err = Load(bad)
	require.Error(t, err)

	_, err = Parse([]byte("{}"), "toml")
	require.Error(t, err)
}

func TestSortedAndSearch(t *testing.T) {
	c, err := Parse([]byte(sampleJSON), "json")
	require.NoError(t, err)

	var ids []string
	for _, a := range c.Sorted() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"chrome", "firefox", "vlc"}, ids)

	found := c.Search("WEB")
	require.Len(t, found, 2)
	assert.Equal(t, "chrome", found[0].ID)

	assert.Len(t, c.Search("anything"), 1)
	assert.Empty(t, c.Search("photoshop"))
	assert.Len(t, c.Search(""), 3)
	assert.Len(t, c.InCategory("media"), 1)
}

func TestNameDefaultsToID(t *testing.T) {
	c, err := Parse([]byte(`{"iterm": {"url": "https://example.com/iTerm2.zip"}}`), "json")
	require.NoError(t, err)
	app, _ := c.Get("iterm")
	assert.Equal(t, "iterm", app.Name)
	assert.Equal(t, "iTerm2.zip", app.FileName())
}

func TestInstalled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Firefox.app"), 0755))

	assert.True(t, Installed(dir, App{Name: "Firefox"}))
	assert.False(t, Installed(dir, App{Name: "Chrome"}))
}
