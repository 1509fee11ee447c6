// internal/snapshot/index.go
package snapshot

import (
	"encoding/json"
	"path/filepath"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

// WriteIndex regenerates file_list.json: every snapshot name, newest first,
// never including itself. Consumers should treat it as advisory.
func (s *Store) WriteIndex() ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, inventory.E(inventory.PersistenceFailure, "list snapshots", err)
	}

	names := make([]string, 0, len(entries))
	var undated []string
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Time.IsZero() {
			undated = append(undated, entries[i].Name)
			continue
		}
		names = append(names, entries[i].Name)
	}
	// undated came out reversed; put them back in name order after the dated ones
	for i := len(undated) - 1; i >= 0; i-- {
		names = append(names, undated[i])
	}

	data, err := json.MarshalIndent(names, "", "    ")
	if err != nil {
		return nil, inventory.E(inventory.PersistenceFailure, "encode index", err)
	}
	if err := WriteFileAtomic(filepath.Join(s.dir, IndexFile), data); err != nil {
		return nil, inventory.E(inventory.PersistenceFailure, "write "+IndexFile, err)
	}
	s.log.Info().Int("files", len(names)).Msg("index regenerated")
	return names, nil
}
