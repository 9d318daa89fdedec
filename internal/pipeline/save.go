package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const timestampLayout = "20060102_150405"

// Save writes recording_<timestamp>_raw.wav and one
// recording_<timestamp>_segment_<i>.wav per segment into dir and returns the
// written paths.
func Save(dir string, at time.Time, res Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	stamp := at.Format(timestampLayout)

	paths := make([]string, 0, len(res.Segments)+1)
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(fmt.Sprintf("recording_%s_raw.wav", stamp), res.RawWAV); err != nil {
		return paths, err
	}
	for i, seg := range res.Segments {
		if err := write(fmt.Sprintf("recording_%s_segment_%d.wav", stamp, i), seg); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
