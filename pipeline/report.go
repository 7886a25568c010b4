package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chaos-io/removebg-square/util"
)

// WriteReport 把汇总写成 JSON
func WriteReport(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return util.WriteFileAtomic(path, append(data, '\n'))
}
