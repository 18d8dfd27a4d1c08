// Package admin manages the template library: listing, creating and
// replacing the PPTX templates the render endpoints use. Access is a
// plain allow-list of user names; there is no credential handling here.
package admin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cortexbi/cortexbi/pkg/deck"
)

// Manager owns the template directory and its manifest.
type Manager struct {
	dir    string
	admins map[string]bool
}

// New creates a manager over dir with the given admin allow-list.
func New(dir string, adminUsers []string) *Manager {
	admins := make(map[string]bool, len(adminUsers))
	for _, u := range adminUsers {
		admins[strings.ToLower(u)] = true
	}
	return &Manager{dir: dir, admins: admins}
}

// IsAdmin reports whether the user may modify templates.
func (m *Manager) IsAdmin(user string) bool {
	return m.admins[strings.ToLower(user)]
}

// manifest is the on-disk template metadata, keyed by template name.
type manifest struct {
	Templates map[string]manifestEntry `yaml:"templates"`
}

type manifestEntry struct {
	Description string    `yaml:"description,omitempty"`
	CreatedBy   string    `yaml:"created_by,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty"`
	UpdatedBy   string    `yaml:"updated_by,omitempty"`
	UpdatedAt   time.Time `yaml:"updated_at,omitempty"`
}

const manifestFile = "manifest.yaml"

func (m *Manager) loadManifest() (*manifest, error) {
	mf := &manifest{Templates: make(map[string]manifestEntry)}
	data, err := os.ReadFile(filepath.Join(m.dir, manifestFile))
	if os.IsNotExist(err) {
		return mf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, mf); err != nil {
		return nil, fmt.Errorf("failed to parse template manifest: %w", err)
	}
	if mf.Templates == nil {
		mf.Templates = make(map[string]manifestEntry)
	}
	return mf, nil
}

func (m *Manager) saveManifest(mf *manifest) error {
	data, err := yaml.Marshal(mf)
	if err != nil {
		return fmt.Errorf("failed to marshal template manifest: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write template manifest: %w", err)
	}
	return nil
}

// TemplateInfo describes one template in the library.
type TemplateInfo struct {
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	Modified     time.Time `json:"modified"`
	Description  string    `json:"description,omitempty"`
	Placeholders []string  `json:"placeholders"`
}

// ListTemplates returns every .pptx template in the directory with its
// placeholder set, sorted by name. Files that fail to parse are listed
// without placeholders rather than hidden.
func (m *Manager) ListTemplates() ([]TemplateInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}
	mf, err := m.loadManifest()
	if err != nil {
		return nil, err
	}

	var out []TemplateInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pptx") {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		info := TemplateInfo{
			Name:        name,
			SizeBytes:   stat.Size(),
			Modified:    stat.ModTime(),
			Description: mf.Templates[name].Description,
		}
		e := deck.NewEngine()
		if err := e.Load(filepath.Join(m.dir, entry.Name())); err == nil {
			info.Placeholders, _ = e.ListPlaceholders()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// TemplatePath resolves a template name to its file path, rejecting
// names that escape the template directory.
func (m *Manager) TemplatePath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pptx") {
		name += ".pptx"
	}
	return filepath.Join(m.dir, name), nil
}

// CreateTemplate writes a new starter template with standard title,
// subtitle and sample-table placeholders. Fails if the name is taken or
// the user is not an admin.
func (m *Manager) CreateTemplate(user, name, description string) error {
	if !m.IsAdmin(user) {
		return fmt.Errorf("user %q is not allowed to manage templates", user)
	}
	path, err := m.TemplatePath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("template %q already exists", name)
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}
	if err := os.WriteFile(path, starterTemplateBytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}

	mf, err := m.loadManifest()
	if err != nil {
		return err
	}
	mf.Templates[name] = manifestEntry{
		Description: description,
		CreatedBy:   user,
		CreatedAt:   time.Now().UTC(),
	}
	return m.saveManifest(mf)
}

// UpdateTemplate replaces an existing template after validating that the
// upload parses as a presentation.
func (m *Manager) UpdateTemplate(user, name string, data []byte) error {
	if !m.IsAdmin(user) {
		return fmt.Errorf("user %q is not allowed to manage templates", user)
	}
	path, err := m.TemplatePath(name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("template %q not found", name)
	}
	if _, err := deck.OpenBytes(data); err != nil {
		return fmt.Errorf("upload is not a valid presentation: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to replace template: %w", err)
	}

	mf, err := m.loadManifest()
	if err != nil {
		return err
	}
	entry := mf.Templates[name]
	entry.UpdatedBy = user
	entry.UpdatedAt = time.Now().UTC()
	mf.Templates[name] = entry
	return m.saveManifest(mf)
}
