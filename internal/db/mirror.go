// internal/db/mirror.go
package db

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakondev/drg-inventory/internal/aggregate"
)

const batchSize = 500

// Keys kept in the kv table.
const (
	KVAggregateBuiltAt = "aggregate_built_at"
	KVLastRun          = "last_run"
)

// MirrorAggregate replaces the items, branches and stock_entries tables with m
// in one transaction.
func (h *Handle) MirrorAggregate(m *aggregate.Model) error {
	items := make([]Item, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, Item{ID: it.ID, Name: it.Name, SKU: it.SKU})
	}
	branches := make([]Branch, 0, len(m.Branches))
	for _, b := range m.Branches {
		row := Branch{ID: b.ID, Name: b.Name}
		if len(b.OnlySKUs) > 0 {
			raw, err := json.Marshal(b.OnlySKUs)
			if err != nil {
				return err
			}
			row.OnlySKUs = string(raw)
		}
		branches = append(branches, row)
	}
	var stock []StockEntry
	for stamp, entries := range m.Inventory {
		for _, e := range entries {
			stock = append(stock, StockEntry{Stamp: stamp, ItemID: e.ItemID, BranchID: e.BranchID, Stock: e.Stock})
		}
	}

	tx := h.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&StockEntry{}, &Item{}, &Branch{}} {
		if err := all.Delete(model).Error; err != nil {
			return fmt.Errorf("clear mirror: %w", err)
		}
	}

	if len(items) > 0 {
		if err := tx.CreateInBatches(items, batchSize).Error; err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
	}
	if len(branches) > 0 {
		if err := tx.CreateInBatches(branches, batchSize).Error; err != nil {
			return fmt.Errorf("insert branches: %w", err)
		}
	}
	if len(stock) > 0 {
		if err := tx.CreateInBatches(stock, batchSize).Error; err != nil {
			return fmt.Errorf("insert stock entries: %w", err)
		}
	}
	if err := setKV(tx, KVAggregateBuiltAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	return tx.Commit().Error
}

func (h *Handle) SetKV(k, v string) error { return setKV(h.DB, k, v) }

func (h *Handle) GetKV(k string) (string, bool, error) {
	var row KV
	res := h.DB.Where("k = ?", k).Limit(1).Find(&row)
	if res.Error != nil {
		return "", false, res.Error
	}
	return row.V, res.RowsAffected > 0, nil
}

func setKV(tx *gorm.DB, k, v string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&KV{K: k, V: v}).Error
}
