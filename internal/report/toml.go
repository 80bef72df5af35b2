package report

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// TOMLReport renders the report as TOML, the format used for saved reports.
type TOMLReport struct{}

// Render produces a TOML document of the report.
func (t *TOMLReport) Render(r *Report) (string, error) {
	if r == nil {
		return "", fmt.Errorf("report is nil")
	}
	data, err := toml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling TOML report: %w", err)
	}
	return string(data), nil
}

// Load reads a TOML report from path.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var r Report
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// Save writes r to path as TOML, creating parent directories as needed.
func Save(path string, r *Report) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	out, err := (&TOMLReport{}).Render(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
