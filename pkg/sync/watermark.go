package sync

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	errs "github.com/shintairiku/instagram-analysis/pkg/errors"
)

// WatermarkStore persists the detector's per-account high-water marks
// between runs so a restart does not reprocess already seen posts.
type WatermarkStore struct {
	path string
}

type watermarkFile struct {
	Accounts  map[string]time.Time `json:"accounts"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func NewWatermarkStore(path string) *WatermarkStore {
	return &WatermarkStore{path: path}
}

// Load returns the saved watermarks, or an empty map when the file
// does not exist yet.
func (s *WatermarkStore) Load() (map[string]time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]time.Time{}, nil
		}
		return nil, errs.Newf(errs.ErrorTypeUnknown, 0, "failed to read watermark file: %v", err)
	}

	var file watermarkFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errs.Newf(errs.ErrorTypeParsing, 0, "failed to parse watermark file: %v", err)
	}
	if file.Accounts == nil {
		file.Accounts = map[string]time.Time{}
	}
	return file.Accounts, nil
}

// Save writes the watermarks atomically via a temp file rename
func (s *WatermarkStore) Save(marks map[string]time.Time) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to create watermark directory: %v", err)
	}

	data, err := json.MarshalIndent(watermarkFile{
		Accounts:  marks,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return errs.Newf(errs.ErrorTypeParsing, 0, "failed to encode watermarks: %v", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to create watermark temp file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to write watermarks: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to sync watermarks: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to close watermark temp file: %v", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return errs.Newf(errs.ErrorTypeUnknown, 0, "failed to replace watermark file: %v", err)
	}
	return nil
}
