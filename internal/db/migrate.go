package db

import (
	"fmt"
)

// Migrate creates or updates the schema.
func (h *Handle) Migrate() error {
	if err := h.DB.AutoMigrate(
		&SnapshotFile{},
		&Item{},
		&Branch{},
		&StockEntry{},
		&IdentityIssue{},
		&KV{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}
