// Package dictionary implements the personalization store: the learned
// word table consulted during boosting and shared, through a snapshot file,
// with the host application process.
package dictionary

import (
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Source records how a word entered the dictionary.
type Source uint8

const (
	SourceUserAdded Source = iota
	SourceLearned
	SourceImported
)

// String returns the stable serialized name used in snapshots and CSV.
func (s Source) String() string {
	switch s {
	case SourceUserAdded:
		return "user"
	case SourceLearned:
		return "learned"
	case SourceImported:
		return "imported"
	default:
		return "unknown"
	}
}

// ParseSource maps a serialized name back to a Source. Unrecognized names
// come back as SourceImported so foreign data never fails a load.
func ParseSource(name string) Source {
	switch name {
	case "user":
		return SourceUserAdded
	case "learned":
		return SourceLearned
	case "imported":
		return SourceImported
	default:
		return SourceImported
	}
}

// WordRecord is one learned word. Frequency never drops below one and
// LastUsed tracks the most recent selection or import.
type WordRecord struct {
	Word      string    `msgpack:"w"`
	Reading   string    `msgpack:"r,omitempty"`
	Frequency int       `msgpack:"f"`
	LastUsed  time.Time `msgpack:"t"`
	Source    Source    `msgpack:"s"`
}

// Store is the in-memory word table plus its optional snapshot file. Reads
// take the shared lock; every mutation takes the exclusive lock and writes
// the whole table back before releasing it, so the snapshot on disk always
// reflects a complete table and concurrent readers never observe a partial
// update.
type Store struct {
	mu     sync.RWMutex
	words  map[string]WordRecord
	prefix *patricia.Trie

	path     string // empty means in-memory only
	degraded bool   // snapshot location unreachable; persistence disabled

	now func() time.Time
}

// Open loads the snapshot at path and returns a ready store. A missing file
// is a first run, a corrupt file is discarded with a warning, and an
// unreachable location flips the store into degraded in-memory mode. Open
// never fails: the caller always gets a working table.
func Open(path string) *Store {
	s := &Store{
		words:  make(map[string]WordRecord),
		prefix: patricia.NewTrie(),
		path:   path,
		now:    time.Now,
	}
	if path == "" {
		return s
	}

	words, err := readSnapshot(path)
	switch {
	case err == nil:
		s.replaceTable(words)
		log.Debugf("Loaded %d dictionary words from %s", len(words), path)
	case isNotFound(err):
		log.Debugf("No dictionary snapshot at %s, starting empty", path)
	case isCorrupt(err):
		log.Warnf("Dictionary snapshot unreadable, starting empty: %v", err)
	default:
		s.degraded = true
		log.Errorf("Dictionary location unreachable, learning is in-memory only: %v", err)
	}
	return s
}

// NewInMemory returns a store with no backing file, useful for ephemeral
// sessions.
func NewInMemory() *Store {
	return Open("")
}

// Lookup returns a copy of the record for word.
func (s *Store) Lookup(word string) (WordRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.words[word]
	return rec, ok
}

// RecordSelection registers that the user picked word while typing
// sourceInput. An existing record gains frequency and recency; an unknown
// word is created with frequency one and learned provenance.
func (s *Store) RecordSelection(word, sourceInput string) {
	if word == "" {
		return
	}
	log.Debugf("Learning '%s' (typed '%s')", word, sourceInput)
	s.Add(word, "", SourceLearned)
}

// Add applies the increment-or-create rule: an existing record gains one
// use and a fresh LastUsed, a new one starts at frequency one with the given
// provenance. A non-empty reading backfills a record that lacks one.
func (s *Store) Add(word, reading string, source Source) {
	if word == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.words[word]
	if ok {
		rec.Frequency++
		rec.LastUsed = s.now()
		if rec.Reading == "" && reading != "" {
			rec.Reading = reading
		}
	} else {
		rec = WordRecord{
			Word:      word,
			Reading:   reading,
			Frequency: 1,
			LastUsed:  s.now(),
			Source:    source,
		}
		s.prefix.Insert(patricia.Prefix(word), struct{}{})
	}
	s.words[word] = rec
	s.flushLocked()
}

// Remove deletes word from the table, reporting whether it was present.
func (s *Store) Remove(word string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.words[word]; !ok {
		return false
	}
	delete(s.words, word)
	s.prefix.Delete(patricia.Prefix(word))
	s.flushLocked()
	return true
}

// Clear empties the table and persists the empty state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.words = make(map[string]WordRecord)
	s.prefix = patricia.NewTrie()
	s.flushLocked()
}

// ImportMany merges records into the table, last write wins: an imported
// record replaces any existing record for the same word wholesale, and
// later duplicates within the batch replace earlier ones. The whole batch
// persists as a single write. Returns the number of records applied.
func (s *Store) ImportMany(records []WordRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, rec := range records {
		if rec.Word == "" {
			continue
		}
		if rec.Frequency < 1 {
			rec.Frequency = 1
		}
		if _, ok := s.words[rec.Word]; !ok {
			s.prefix.Insert(patricia.Prefix(rec.Word), struct{}{})
		}
		s.words[rec.Word] = rec
		applied++
	}
	if applied > 0 {
		s.flushLocked()
	}
	return applied
}

// ExportAll returns every record ordered by frequency descending, words
// ascending within a frequency.
func (s *Store) ExportAll() []WordRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WordRecord, 0, len(s.words))
	for _, rec := range s.words {
		out = append(out, rec)
	}
	sortExport(out)
	return out
}

// WordsWithPrefix returns copies of every record whose word starts with
// prefix, in trie order.
func (s *Store) WordsWithPrefix(prefix string) []WordRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []WordRecord
	err := s.prefix.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, _ patricia.Item) error {
		if rec, ok := s.words[string(p)]; ok {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error scanning dictionary prefix '%s': %v", prefix, err)
	}
	return out
}

// HasPrefix reports whether any dictionary word starts with prefix.
func (s *Store) HasPrefix(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefix.MatchSubtree(patricia.Prefix(prefix))
}

// Len reports the number of words in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Path returns the snapshot location, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Degraded reports whether persistence was disabled at startup.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Reload replaces the in-memory table with the current snapshot contents,
// picking up writes made by the other process. In-memory and degraded
// stores keep their table unchanged.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" || s.degraded {
		return nil
	}
	words, err := readSnapshot(s.path)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	s.replaceTable(words)
	log.Debugf("Reloaded %d dictionary words from %s", len(words), s.path)
	return nil
}

// replaceTable swaps in a fresh table and rebuilds the prefix index.
// Callers hold the write lock (or own the store exclusively during Open).
func (s *Store) replaceTable(words map[string]WordRecord) {
	s.words = words
	s.prefix = patricia.NewTrie()
	for word := range words {
		s.prefix.Insert(patricia.Prefix(word), struct{}{})
	}
}

func sortExport(records []WordRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Frequency != records[j].Frequency {
			return records[i].Frequency > records[j].Frequency
		}
		return records[i].Word < records[j].Word
	})
}
