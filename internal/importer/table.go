package importer

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// candidateDelimiters is in priority order; earlier entries win ties.
var candidateDelimiters = []rune{',', '\t', ';', '|'}

// HeaderMode overrides header detection.
type HeaderMode int

const (
	HeaderAuto HeaderMode = iota
	HeaderPresent
	HeaderAbsent
)

// DetectOptions tunes Detect. The zero value detects everything.
type DetectOptions struct {
	Delimiter rune // 0 = detect
	Header    HeaderMode
}

// RawTable is a tokenized upload before any semantic interpretation.
// It is not modified after Detect returns.
type RawTable struct {
	Headers   []string
	Delimiter rune
	HasHeader bool
	Skipped   []ParseError

	records [][]string
	lines   []int
	index   map[string]int
}

// RowCount returns the number of well-formed data rows.
func (t *RawTable) RowCount() int { return len(t.records) }

// Record returns a copy of data row i.
func (t *RawTable) Record(i int) []string {
	out := make([]string, len(t.records[i]))
	copy(out, t.records[i])
	return out
}

// Row returns data row i keyed by header name.
func (t *RawTable) Row(i int) map[string]string {
	row := make(map[string]string, len(t.Headers))
	for c, h := range t.Headers {
		row[h] = t.records[i][c]
	}
	return row
}

// Line returns the one-based line number row i came from.
func (t *RawTable) Line(i int) int { return t.lines[i] }

// Column returns the index of a header.
func (t *RawTable) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Sample returns up to n values from column col, in row order.
func (t *RawTable) Sample(col, n int) []string {
	if n > len(t.records) {
		n = len(t.records)
	}
	out := make([]string, 0, n)
	for _, rec := range t.records[:n] {
		out = append(out, rec[col])
	}
	return out
}

// Detect tokenizes text, choosing the delimiter and header row heuristically.
func Detect(text string) (*RawTable, error) {
	return DetectWith(text, DetectOptions{})
}

// DetectWith is Detect with overrides.
func DetectWith(text string, opts DetectOptions) (*RawTable, error) {
	lines, lineNos := splitLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(lines[0])
	}

	first, err := tokenizeLine(lines[0], delim)
	if err != nil {
		first = splitFields(lines[0], delim)
	}

	hasHeader := looksLikeHeader(first)
	switch opts.Header {
	case HeaderPresent:
		hasHeader = true
	case HeaderAbsent:
		hasHeader = false
	}

	t := &RawTable{Delimiter: delim, HasHeader: hasHeader}
	start := 0
	if hasHeader {
		t.Headers = uniqueHeaders(first)
		start = 1
	} else {
		t.Headers = syntheticHeaders(len(first))
	}

	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		t.index[h] = i
	}

	for i := start; i < len(lines); i++ {
		row := i - start
		if !utf8.ValidString(lines[i]) {
			t.Skipped = append(t.Skipped, ParseError{Row: row, Line: lineNos[i], Reason: "invalid UTF-8"})
			continue
		}
		rec, err := tokenizeLine(lines[i], delim)
		if err != nil {
			t.Skipped = append(t.Skipped, ParseError{Row: row, Line: lineNos[i], Reason: err.Error()})
			continue
		}
		if len(rec) != len(t.Headers) {
			t.Skipped = append(t.Skipped, ParseError{
				Row:    row,
				Line:   lineNos[i],
				Reason: fmt.Sprintf("expected %d columns, got %d", len(t.Headers), len(rec)),
			})
			continue
		}
		t.records = append(t.records, rec)
		t.lines = append(t.lines, lineNos[i])
	}
	return t, nil
}

// DetectDelimiter picks the candidate that splits line into the most columns.
func DetectDelimiter(line string) rune {
	best := candidateDelimiters[0]
	bestCols := 0
	for _, d := range candidateDelimiters {
		cols := strings.Count(line, string(d)) + 1
		if cols > bestCols {
			best, bestCols = d, cols
		}
	}
	return best
}

// splitLines splits on any line ending and drops blank lines, keeping the
// original one-based line numbers.
func splitLines(text string) ([]string, []int) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	var nos []int
	for i, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
		nos = append(nos, i+1)
	}
	return lines, nos
}

func tokenizeLine(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	// Leading-space trimming would also swallow empty tab-separated cells.
	r.TrimLeadingSpace = delim != '\t'

	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec, nil
}

func splitFields(line string, delim rune) []string {
	fields := strings.Split(line, string(delim))
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// looksLikeHeader reports whether any field is non-empty and non-numeric.
func looksLikeHeader(fields []string) bool {
	for _, f := range fields {
		if f != "" && !isNumeric(f) {
			return true
		}
	}
	return false
}

func syntheticHeaders(n int) []string {
	h := make([]string, n)
	for i := range h {
		h[i] = "Column " + strconv.Itoa(i+1)
	}
	return h
}

// uniqueHeaders names blank headers by position and suffixes repeats until
// every name is distinct.
func uniqueHeaders(fields []string) []string {
	out := make([]string, len(fields))
	used := make(map[string]bool, len(fields))
	next := make(map[string]int, len(fields))
	for i, f := range fields {
		name := f
		if name == "" {
			name = "Column " + strconv.Itoa(i+1)
		}
		base := name
		for n := max(next[base], 2); used[name]; n++ {
			name = fmt.Sprintf("%s (%d)", base, n)
			next[base] = n + 1
		}
		used[name] = true
		out[i] = name
	}
	return out
}
