package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var errInvalidFetchOrder = errors.New("fetch_order must be 'newest' or 'oldest'")

// UserSettings is the supplemented-feature schema ported from
// skymarshal/settings.py::SettingsManager (SPEC_FULL.md §4.13), minus the
// interactive Rich menu (out of scope per spec.md §1).
type UserSettings struct {
	DownloadLimitDefault           int      `json:"download_limit_default"`
	DefaultCategories              []string `json:"default_categories"`
	RecordsPageSize                int      `json:"records_page_size"`
	HydrateBatchSize               int      `json:"hydrate_batch_size"`
	CategoryWorkers                int      `json:"category_workers"`
	FileListPageSize               int      `json:"file_list_page_size"`
	HighEngagementThreshold        int      `json:"high_engagement_threshold"`
	UseSubjectEngagementForReposts bool     `json:"use_subject_engagement_for_reposts"`
	FetchOrder                     string   `json:"fetch_order"`
}

// DefaultUserSettings mirrors the Python UserSettings() default constructor.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		DownloadLimitDefault:           1000,
		DefaultCategories:              []string{"posts", "likes", "reposts"},
		RecordsPageSize:                100,
		HydrateBatchSize:               25,
		CategoryWorkers:                3,
		FileListPageSize:               20,
		HighEngagementThreshold:        50,
		UseSubjectEngagementForReposts: true,
		FetchOrder:                     "newest",
	}
}

// SettingsManager loads and persists UserSettings to a JSON file, grounded
// on skymarshal/settings.py::SettingsManager.
type SettingsManager struct {
	path     string
	Settings UserSettings
}

// NewSettingsManager loads settings from path, or returns defaults if the
// file is absent or unreadable — matching the Python _load_user_settings's
// best-effort fallback.
func NewSettingsManager(path string) *SettingsManager {
	m := &SettingsManager{path: path, Settings: DefaultUserSettings()}
	m.load()
	return m
}

func (m *SettingsManager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	loaded := m.Settings // fields absent from the file keep their current values
	if err := json.Unmarshal(data, &loaded); err != nil {
		return
	}
	m.Settings = loaded
}

// Save writes the current settings atomically (write-and-rename), matching
// spec.md §5's shared-resource policy for the JSON export file, applied
// here to settings.json as well.
func (m *SettingsManager) Save() error {
	data, err := json.MarshalIndent(m.Settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// UpdateRecordsPageSize clamps to [1,100] per settings.py's validator.
func (m *SettingsManager) UpdateRecordsPageSize(v int) {
	m.Settings.RecordsPageSize = clamp(v, 1, 100)
}

// UpdateHydrateBatchSize clamps to [1,25] per settings.py's validator.
func (m *SettingsManager) UpdateHydrateBatchSize(v int) {
	m.Settings.HydrateBatchSize = clamp(v, 1, 25)
}

// UpdateFetchOrder validates "newest"|"oldest".
func (m *SettingsManager) UpdateFetchOrder(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	if v != "newest" && v != "oldest" {
		return errInvalidFetchOrder
	}
	m.Settings.FetchOrder = v
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
