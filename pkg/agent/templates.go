package agent

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed templates
var embeddedTemplates embed.FS

// TemplateSet is the immutable map of persona -> file-stem -> content
// loaded once at startup, e.g. {"skeptic": {"persona": "...",
// "domain-knowledge": "..."}}.
type TemplateSet struct {
	byAgent map[string]map[string]string
}

var (
	loadOnce    sync.Once
	loaded      *TemplateSet
	loadErr     error
)

// LoadTemplates loads every persona's markdown templates. When dir is
// empty, the build-time embedded bundle under pkg/agent/templates is
// used so the binary runs without an external templates directory;
// passing dir overrides with files read from disk (for operators who
// want to edit personas without rebuilding).
func LoadTemplates(dir string) (*TemplateSet, error) {
	loadOnce.Do(func() {
		if dir != "" {
			loaded, loadErr = loadFromDisk(dir)
		} else {
			loaded, loadErr = loadFromFS(embeddedTemplates, "templates")
		}
		if loadErr == nil && (loaded == nil || len(loaded.byAgent) == 0) {
			loadErr = ErrTemplatesUnavailable
		}
	})
	return loaded, loadErr
}

// ResetForTest clears the cached template set so tests can reload with a
// different directory. Not used outside tests.
func ResetForTest() {
	loadOnce = sync.Once{}
	loaded = nil
	loadErr = nil
}

func loadFromDisk(dir string) (*TemplateSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &TemplateSet{byAgent: map[string]map[string]string{}}, nil
	}
	byAgent := make(map[string]map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agentID := entry.Name()
		files, err := os.ReadDir(filepath.Join(dir, agentID))
		if err != nil {
			continue
		}
		byAgent[agentID] = make(map[string]string)
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
				continue
			}
			content, err := os.ReadFile(filepath.Join(dir, agentID, f.Name()))
			if err != nil {
				continue
			}
			stem := strings.TrimSuffix(f.Name(), ".md")
			byAgent[agentID][stem] = string(content)
		}
	}
	return &TemplateSet{byAgent: byAgent}, nil
}

func loadFromFS(f fs.FS, root string) (*TemplateSet, error) {
	byAgent := make(map[string]map[string]string)
	entries, err := fs.ReadDir(f, root)
	if err != nil {
		return &TemplateSet{byAgent: byAgent}, nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		agentID := entry.Name()
		files, err := fs.ReadDir(f, filepath.Join(root, agentID))
		if err != nil {
			continue
		}
		byAgent[agentID] = make(map[string]string)
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
				continue
			}
			content, err := fs.ReadFile(f, filepath.Join(root, agentID, file.Name()))
			if err != nil {
				continue
			}
			stem := strings.TrimSuffix(file.Name(), ".md")
			byAgent[agentID][stem] = string(content)
		}
	}
	return &TemplateSet{byAgent: byAgent}, nil
}

// Get returns one named template for a persona ("persona",
// "domain-knowledge"), or "" if absent.
func (t *TemplateSet) Get(agentID, name string) string {
	if t == nil {
		return ""
	}
	return t.byAgent[agentID][name]
}

// ForAgent returns all templates loaded for a persona.
func (t *TemplateSet) ForAgent(agentID string) map[string]string {
	if t == nil {
		return nil
	}
	return t.byAgent[agentID]
}
