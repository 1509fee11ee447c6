// internal/db/registry.go
package db

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

// RegisterSnapshot records a snapshot file. Registering the same file name
// twice returns the existing row and existed=true.
func (h *Handle) RegisterSnapshot(path, runID, lastUpdated string, items int) (uint, bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false, err
	}
	sum, err := fileSHA256(path)
	if err != nil {
		return 0, false, err
	}
	name := filepath.Base(path)

	var existing SnapshotFile
	err = h.DB.Where("filename = ?", name).Take(&existing).Error
	if err == nil {
		return existing.SnapshotID, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, err
	}

	rec := SnapshotFile{
		Filename:    name,
		LastUpdated: lastUpdated,
		SHA256:      sum,
		SizeBytes:   fi.Size(),
		Items:       items,
		RunID:       runID,
		Status:      StatusPending,
	}
	if err := h.DB.Create(&rec).Error; err != nil {
		return 0, false, err
	}
	return rec.SnapshotID, false, nil
}

// MarkSnapshot sets the final status of a registered snapshot.
func (h *Handle) MarkSnapshot(id uint, status int, cause error) error {
	now := time.Now().UTC()
	upd := map[string]any{"status": status, "processed_at": &now, "last_error": ""}
	if cause != nil {
		upd["last_error"] = cause.Error()
	}
	return h.DB.Model(&SnapshotFile{}).Where("snapshot_id = ?", id).Updates(upd).Error
}

func (h *Handle) Snapshots() ([]SnapshotFile, error) {
	var out []SnapshotFile
	err := h.DB.Order("filename").Find(&out).Error
	return out, err
}

// SaveIdentityIssues upserts conflicts; a repeat bumps Seen and the run id.
func (h *Handle) SaveIdentityIssues(runID string, conflicts []inventory.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	return h.DB.Transaction(func(tx *gorm.DB) error {
		for _, c := range conflicts {
			row := IdentityIssue{Reason: c.Reason, SKU: c.SKU, Name: c.Name, Other: c.Other, Source: c.Source, RunID: runID, Seen: 1}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "reason"}, {Name: "sku"}, {Name: "name"}},
				DoUpdates: clause.Assignments(map[string]any{
					"other":      c.Other,
					"source":     c.Source,
					"run_id":     runID,
					"seen":       gorm.Expr("seen + 1"),
					"updated_at": time.Now(),
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("save identity issue %s/%s: %w", c.SKU, c.Name, err)
			}
		}
		return nil
	})
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
