package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/nao1215/siteharvest/internal/manifest"
	"github.com/nao1215/siteharvest/internal/model"
)

// LoadReport reads manifests/report.json from an export directory.
func LoadReport(dir string) (*model.Report, error) {
	var report model.Report
	if err := readJSON(dir, path.Join(manifest.ManifestsDir, ReportFile), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// LoadAssets reads manifests/live_assets.json from an export directory.
func LoadAssets(dir string) ([]model.Asset, error) {
	assets := make([]model.Asset, 0)
	if err := readJSON(dir, path.Join(manifest.ManifestsDir, LiveAssetsFile), &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func readJSON(dir, rel string, v any) error {
	target, err := Resolve(dir, rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(target) //nolint:gosec // path is checked by Resolve
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", rel, err)
	}
	return nil
}
