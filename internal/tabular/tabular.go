// Package tabular reads and writes the CSV/TSV tables exchanged with users:
// SST archive exports, ad-hoc imports and day-of-year baseline tables.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("missing header row")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadRows parses a header-row table into rows keyed by trimmed header.
//
// The delimiter is a comma unless the header line contains a tab and no comma.
// Blank lines are skipped and short rows are tolerated; missing trailing cells
// are simply absent from the row.
func ReadRows(r io.Reader) ([]domain.Row, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("skip byte order mark: %w", err)
		}
	}

	firstLine, err := peekLine(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(firstLine)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []domain.Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blankRecord(record) {
			continue
		}

		row := make(domain.Row, len(header))
		for i, h := range header {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// peekLine returns the first non-blank line within the reader's buffer
// without consuming it.
func peekLine(br *bufio.Reader) (string, error) {
	buf, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read header: %w", err)
	}
	if len(buf) == 0 {
		return "", ErrNoHeader
	}
	for _, line := range strings.Split(string(buf), "\n") {
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
	}
	return "", nil
}

func detectDelimiter(headerLine string) rune {
	if strings.Contains(headerLine, "\t") && !strings.Contains(headerLine, ",") {
		return '\t'
	}
	return ','
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// WriteArchive writes the archive as "date,<site>,..." with one line per date
// in ascending order. Configured sites come first, then any other site found
// in the archive. Missing readings are empty cells.
func WriteArchive(w io.Writer, a domain.Archive, locations []domain.Location) error {
	keys := domain.KnownLocations(a, locations)
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{domain.DateColumn}, keys...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range domain.ToRows(a, locations) {
		record := make([]string, 0, len(keys)+1)
		record = append(record, row[domain.DateColumn])
		for _, k := range keys {
			record = append(record, row[k])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return nil
}

// ReadArchive parses an exported archive table and merges it into existing.
func ReadArchive(r io.Reader, existing domain.Archive, locations []domain.Location) (domain.Archive, domain.MergeStats, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, domain.MergeStats{}, err
	}
	merged, stats := domain.MergeRows(existing, rows, locations)
	return merged, stats, nil
}

// ReadBaseline parses a day-of-year climatology table into an index.
func ReadBaseline(r io.Reader) (*domain.BaselineIndex, domain.BaselineStats, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, domain.BaselineStats{}, fmt.Errorf("read baseline: %w", err)
	}
	idx, stats := domain.NewBaselineIndex(rows)
	return idx, stats, nil
}
