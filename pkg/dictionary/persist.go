package dictionary

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kaedera/predictd/internal/utils"
)

const snapshotVersion = 1

// snapshot is the on-disk msgpack layout. The whole table travels in one
// document so a reader always sees a complete, internally consistent state.
type snapshot struct {
	Version int          `msgpack:"v"`
	SavedAt time.Time    `msgpack:"at"`
	Words   []WordRecord `msgpack:"words"`
}

var errCorruptSnapshot = errors.New("corrupt dictionary snapshot")

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func isCorrupt(err error) bool {
	return errors.Is(err, errCorruptSnapshot)
}

func readSnapshot(path string) (map[string]WordRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "read dictionary snapshot %s", path)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrapf(errCorruptSnapshot, "decode %s: %v", path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Wrapf(errCorruptSnapshot, "%s has unsupported version %d", path, snap.Version)
	}

	words := make(map[string]WordRecord, len(snap.Words))
	for _, rec := range snap.Words {
		if rec.Word == "" {
			continue
		}
		if rec.Frequency < 1 {
			rec.Frequency = 1
		}
		words[rec.Word] = rec
	}
	return words, nil
}

// flushLocked writes the whole table back to the snapshot file. Persistence
// failures are logged and swallowed: in-memory learning must keep working
// even when the disk does not. Callers hold the write lock.
func (s *Store) flushLocked() {
	if s.path == "" || s.degraded {
		return
	}
	if err := writeSnapshot(s.path, s.words, s.now()); err != nil {
		log.Errorf("Failed to persist dictionary: %v", err)
	}
}

// writeSnapshot encodes the table and swaps it into place with a rename so
// the other process never reads a torn file.
func writeSnapshot(path string, words map[string]WordRecord, at time.Time) error {
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: at,
		Words:   make([]WordRecord, 0, len(words)),
	}
	for _, rec := range words {
		snap.Words = append(snap.Words, rec)
	}
	sortExport(snap.Words)

	raw, err := msgpack.Marshal(&snap)
	if err != nil {
		return errors.Wrap(err, "encode dictionary snapshot")
	}

	dir := filepath.Dir(path)
	if err := utils.EnsureDir(dir); err != nil {
		return errors.Wrapf(err, "create dictionary directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".userdict-*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp snapshot")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace snapshot %s", path)
	}
	return nil
}
