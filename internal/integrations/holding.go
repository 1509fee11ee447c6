// internal/integrations/holding.go
package integrations

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var unsafeName = strings.NewReplacer(" ", "_", "/", "_", `\`, "_", ":", "_")

// Hold keeps a downloaded artifact in the run's holding dir. An empty dir
// disables it and returns "".
func Hold(dir, name string, data []byte) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("holding dir: %w", err)
	}
	p := filepath.Join(dir, unsafeName.Replace(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("hold %s: %w", name, err)
	}
	return p, nil
}
