// internal/snapshot/store.go
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakondev/drg-inventory/internal/inventory"
)

// Store is a directory of snapshot files. It is append-only: Write never
// replaces an existing snapshot.
type Store struct {
	log zerolog.Logger
	dir string
	loc *time.Location
}

func NewStore(log zerolog.Logger, dir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{log: log, dir: dir, loc: loc}
}

func (s *Store) Dir() string              { return s.dir }
func (s *Store) Location() *time.Location { return s.loc }

// Entry is a snapshot file found in the store.
type Entry struct {
	Name string
	Time time.Time // zero when the name carries no timestamp
}

// Write persists items as a new snapshot stamped with now (in the store's
// zone). A snapshot for the same second already on disk is an error.
func (s *Store) Write(items []inventory.CanonicalItem, now time.Time) (Snapshot, string, error) {
	now = now.In(s.loc)
	snap := Snapshot{LastUpdated: now.Format(StampLayout), Inventory: items}
	if snap.Inventory == nil {
		snap.Inventory = []inventory.CanonicalItem{}
	}

	data, err := Encode(snap)
	if err != nil {
		return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "encode snapshot", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "create snapshot dir", err)
	}

	name := FileName(now)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "create "+name, fmt.Errorf("snapshot for this second already exists"))
		}
		return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "create "+name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "write "+name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Snapshot{}, "", inventory.E(inventory.PersistenceFailure, "close "+name, err)
	}

	s.log.Info().Str("file", name).Int("items", len(items)).Msg("snapshot written")
	return snap, path, nil
}

// WriteLatest replaces path with the snapshot via a temp file and rename.
func WriteLatest(path string, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return inventory.E(inventory.PersistenceFailure, "encode latest", err)
	}
	if err := WriteFileAtomic(path, data); err != nil {
		return inventory.E(inventory.PersistenceFailure, "write "+filepath.Base(path), err)
	}
	return nil
}

// Encode renders compact JSON with non-ASCII and HTML characters left as is.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// List returns every .json file in the store except the index and the latest
// copy, oldest first.
// Files whose names carry no timestamp sort last, by name.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var out []Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") || name == IndexFile || name == LatestFile || strings.HasPrefix(name, ".") {
			continue
		}
		e := Entry{Name: name}
		if t, ok := ParseName(name, s.loc); ok {
			e.Time = t
		} else {
			s.log.Debug().Str("file", name).Msg("file name carries no timestamp")
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Time.IsZero() != b.Time.IsZero():
			return !a.Time.IsZero()
		case !a.Time.Equal(b.Time):
			return a.Time.Before(b.Time)
		default:
			return a.Name < b.Name
		}
	})
	return out, nil
}

func (s *Store) Load(name string) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", name, err)
	}
	if snap.LastUpdated == "" {
		return Snapshot{}, fmt.Errorf("%s: missing last_updated", name)
	}
	return snap, nil
}

// Latest loads the newest timestamped snapshot.
func (s *Store) Latest() (Snapshot, string, error) {
	entries, err := s.List()
	if err != nil {
		return Snapshot{}, "", err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Time.IsZero() {
			continue
		}
		snap, err := s.Load(entries[i].Name)
		if err != nil {
			s.log.Warn().Err(err).Str("file", entries[i].Name).Msg("skipping unreadable snapshot")
			continue
		}
		return snap, entries[i].Name, nil
	}
	return Snapshot{}, "", fmt.Errorf("no snapshot in %s", s.dir)
}
