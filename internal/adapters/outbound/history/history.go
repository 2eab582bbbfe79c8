package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const (
	historyFile = ".a11ykraft/history/compliance.json"
	// maxEntries keeps the trend file bounded; the oldest entries go first.
	maxEntries = 500
)

// FileHistory implements domain.ReportHistory using JSON file storage.
type FileHistory struct{}

func New() *FileHistory {
	return &FileHistory{}
}

func (h *FileHistory) Save(projectPath string, entry domain.ReportEntry) error {
	entries, err := h.Load(projectPath)
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	fp := filepath.Join(projectPath, historyFile)
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	// Written beside the target and renamed into place.
	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return os.Rename(tmp, fp)
}

func (h *FileHistory) Load(projectPath string) ([]domain.ReportEntry, error) {
	fp := filepath.Join(projectPath, historyFile)

	data, err := os.ReadFile(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []domain.ReportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", historyFile, err)
	}

	return entries, nil
}

// ForSite filters entries down to one site, preserving order.
func ForSite(entries []domain.ReportEntry, siteURL string) []domain.ReportEntry {
	if siteURL == "" {
		return entries
	}
	var out []domain.ReportEntry
	for _, e := range entries {
		if e.SiteURL == siteURL {
			out = append(out, e)
		}
	}
	return out
}
