// internal/db/models.go
package db

import "time"

// Snapshot file status.
const (
	StatusPending = 0
	StatusDone    = 1
	StatusError   = 2
)

// snapshot_files: one row per snapshot written or found in the store
type SnapshotFile struct {
	SnapshotID  uint   `gorm:"primaryKey;column:snapshot_id"`
	Filename    string `gorm:"uniqueIndex;size:64"`
	LastUpdated string `gorm:"index;size:32"`
	SHA256      string `gorm:"index;size:64"`
	SizeBytes   int64
	Items       int
	RunID       string    `gorm:"index;size:36"`
	Status      int       `gorm:"index"`
	LastError   string    `gorm:"type:text"`
	ReceivedAt  time.Time `gorm:"autoCreateTime"`
	ProcessedAt *time.Time
}

// items: aggregate mirror, rebuilt on every aggregation
type Item struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"size:512"`
	SKU  string `gorm:"index;size:128"`
}

// branches: aggregate mirror; OnlySKUs is a JSON array
type Branch struct {
	ID       int    `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"size:255"`
	OnlySKUs string `gorm:"type:text"`
}

// stock_entries: aggregate mirror
type StockEntry struct {
	Stamp    string `gorm:"primaryKey;size:32"`
	ItemID   int    `gorm:"primaryKey;autoIncrement:false"`
	BranchID int    `gorm:"primaryKey;autoIncrement:false"`
	Stock    float64
}

// identity_issues: SKU/name disagreements met while reconciling
type IdentityIssue struct {
	ID        uint   `gorm:"primaryKey"`
	Reason    string `gorm:"size:32;uniqueIndex:uniq_identity_issue"`
	SKU       string `gorm:"size:128;uniqueIndex:uniq_identity_issue"`
	Name      string `gorm:"size:512;uniqueIndex:uniq_identity_issue"`
	Other     string `gorm:"size:512"`
	Source    string `gorm:"size:32"`
	RunID     string `gorm:"size:36"`
	Seen      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type KV struct {
	K string `gorm:"primaryKey;size:128"`
	V string
}
