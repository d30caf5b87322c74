package gateway

import (
	"os"
	"path/filepath"
)

// writeFileAll writes data to path, creating parent directories as
// needed. Used by SQLite's UploadFile to realize the storage path
// pattern of spec.md §6 on local disk.
func writeFileAll(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
