// Package catalog loads the list of installable applications.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Status tells how an application is licensed.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusCracked Status = "cracked"
)

// App is one catalog entry.
// - Name: display name, also the bundle name probed in the Applications folder.
// - URL: http(s):// or s3:// source of the installer.
// - Filename: name the installer is saved under; defaults to the URL's base name.
type App struct {
	ID          string `json:"-" yaml:"-"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
	URL         string `json:"url" yaml:"url"`
	Filename    string `json:"filename" yaml:"filename"`
	Status      Status `json:"status" yaml:"status"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// FileName returns the local file name for the installer.
func (a App) FileName() string {
	if a.Filename != "" {
		return filepath.Base(a.Filename)
	}
	if a.URL == "" {
		return a.ID
	}
	return path.Base(strings.SplitN(a.URL, "?", 2)[0])
}

// Catalog maps application identifiers to entries.
type Catalog struct {
	apps map[string]App
}

// Empty returns a catalog without entries.
func Empty() *Catalog {
	return &Catalog{apps: map[string]App{}}
}

// Load reads a catalog file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Load(file string) (*Catalog, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", file, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	c, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", file, err)
	}
	return c, nil
}

// Parse decodes a catalog document in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, error) {
	raw := map[string]App{}
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unknown catalog format %q", format)
	}
	if err != nil {
		return nil, err
	}
	c := Empty()
	for id, app := range raw {
		app.ID = id
		if app.Name == "" {
			app.Name = id
		}
		c.apps[id] = app
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.apps)
}

// Get looks an entry up by identifier.
func (c *Catalog) Get(id string) (App, bool) {
	app, ok := c.apps[id]
	return app, ok
}

// Sorted returns all entries ordered by category, then name.
func (c *Catalog) Sorted() []App {
	apps := make([]App, 0, len(c.apps))
	for _, app := range c.apps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		a, b := apps[i], apps[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return apps
}

// Search returns the sorted entries whose name or description contains term,
// ignoring case. An empty term matches everything.
func (c *Catalog) Search(term string) []App {
	term = strings.ToLower(strings.TrimSpace(term))
	all := c.Sorted()
	if term == "" {
		return all
	}
	var out []App
	for _, app := range all {
		if strings.Contains(strings.ToLower(app.Name), term) ||
			strings.Contains(strings.ToLower(app.Description), term) {
			out = append(out, app)
		}
	}
	return out
}

// InCategory returns the sorted entries of one category, ignoring case.
func (c *Catalog) InCategory(category string) []App {
	var out []App
	for _, app := range c.Sorted() {
		if strings.EqualFold(app.Category, category) {
			out = append(out, app)
		}
	}
	return out
}

// Installed reports whether <appsDir>/<name>.app exists.
func Installed(appsDir string, app App) bool {
	_, err := os.Stat(filepath.Join(appsDir, app.Name+".app"))
	return err == nil
}
