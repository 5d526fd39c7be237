// Package ramcsv indexes the line offsets of a delimited file in one pass so
// that individual records can later be read at random.
package ramcsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

type locator struct {
	Offset int64
	Length int
}

// Source is scanned once from its current position, which must be the start
// of the file, and then read at the recorded offsets.
type Source interface {
	io.Reader
	io.ReaderAt
}

type RAMCSV struct {
	offset int64       // the current offset
	m      []locator   // maps line numbers (key) to Offset and Length (value)
	rdr    *csv.Reader // to store settings
	src    io.ReaderAt
}

// NewRAMCSV indexes src. rdr only carries parser settings (Comma, Comment,
// ...); it is never read from.
func NewRAMCSV(src Source, rdr *csv.Reader) (*RAMCSV, error) {
	if rdr == nil {
		rdr = csv.NewReader(nil)
	}

	ram := RAMCSV{
		m:   make([]locator, 0),
		rdr: rdr,
		src: src,
	}

	// To initialize, scan through the entire file once to identify the offsets
	// at each line.
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	scanner.Split(scanLinesNondestructive)
	var b []byte
	for scanner.Scan() {
		b = scanner.Bytes()

		ram.m = append(ram.m, locator{
			Offset: ram.offset,
			Length: len(b),
		})

		ram.offset += int64(len(b))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ram, nil
}

// Len is the number of lines in the file, including a final line without a
// trailing newline.
func (ram *RAMCSV) Len() int {
	return len(ram.m)
}

// Read parses the 0-based line.
func (ram *RAMCSV) Read(line int) ([]string, error) {
	if line < 0 || len(ram.m)-1 < line {
		return nil, fmt.Errorf("Line %d is outside of the file (%d lines)", line, len(ram.m))
	}

	val := make([]byte, ram.m[line].Length)
	if _, err := ram.src.ReadAt(val, ram.m[line].Offset); err != nil && err != io.EOF {
		return nil, err
	}

	csvr := csv.NewReader(bytes.NewBuffer(val))
	csvr.Comma = ram.rdr.Comma
	csvr.Comment = ram.rdr.Comment
	csvr.FieldsPerRecord = ram.rdr.FieldsPerRecord
	csvr.LazyQuotes = ram.rdr.LazyQuotes
	csvr.ReuseRecord = ram.rdr.ReuseRecord
	csvr.TrimLeadingSpace = ram.rdr.TrimLeadingSpace

	return csvr.Read()
}

// scanLinesNondestructive does not destroy the \n or the possible \r\n from a
// line. Otherwise it is like
// https://golang.org/src/bufio/scan.go?s=11522:11600#L330
func scanLinesNondestructive(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		// We have a full newline-terminated line.
		return i + 1, data[0 : i+1], nil
	}
	// If we're at EOF, we have a final, non-terminated line. Return it.
	if atEOF {
		return len(data), data, nil
	}
	// Request more data.
	return 0, nil, nil
}
