package dictionary

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// csvColumns is the interchange header shared with the host application.
var csvColumns = []string{"word", "reading", "frequency", "lastUsed", "source"}

// ExportCSV writes the whole table as CSV: a header row, then one row per
// word ordered by frequency descending. Timestamps are ISO-8601 in UTC.
func (s *Store) ExportCSV(w io.Writer) error {
	records := s.ExportAll()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, rec := range records {
		row := []string{
			rec.Word,
			rec.Reading,
			strconv.Itoa(rec.Frequency),
			rec.LastUsed.UTC().Format(time.RFC3339),
			rec.Source.String(),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row for '%s'", rec.Word)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// ImportCSV parses CSV rows and merges them into the table with the same
// last-write-wins rule as ImportMany. Malformed rows are skipped with a
// warning rather than failing the batch. Returns the number of applied rows.
func (s *Store) ImportCSV(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return 0, errors.Wrap(err, "parse csv")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	start := 0
	if isHeaderRow(rows[0]) {
		start = 1
	}

	records := make([]WordRecord, 0, len(rows)-start)
	for i, row := range rows[start:] {
		rec, ok := parseRow(row)
		if !ok {
			log.Warnf("Skipping malformed csv row %d", start+i+1)
			continue
		}
		records = append(records, rec)
	}
	return s.ImportMany(records), nil
}

func isHeaderRow(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "word")
}

func parseRow(row []string) (WordRecord, bool) {
	if len(row) < 5 {
		return WordRecord{}, false
	}
	word := strings.TrimSpace(row[0])
	if word == "" {
		return WordRecord{}, false
	}

	freq, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil || freq < 1 {
		freq = 1
	}

	// an unparseable timestamp means "long ago", which zero time already is
	lastUsed, err := time.Parse(time.RFC3339, strings.TrimSpace(row[3]))
	if err != nil {
		lastUsed = time.Time{}
	}

	return WordRecord{
		Word:      word,
		Reading:   strings.TrimSpace(row[1]),
		Frequency: freq,
		LastUsed:  lastUsed,
		Source:    ParseSource(strings.TrimSpace(row[4])),
	}, true
}
