package ifcbpsd

import (
	"bufio"
	"bytes"
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// sniffBytes is how much of a table is inspected to guess its delimiter.
const sniffBytes = 16 * 1024

// Delimiters are the runes accepted as table delimiters, most preferred
// first.
var Delimiters = []rune{',', '\t', ';', '|'}

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file. Only runes in Delimiters are
// considered; when several qualify, the earliest in Delimiters wins, so the
// answer does not depend on the detector's iteration order.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	found := make(map[rune]struct{}, len(delimiters))
	for _, v := range delimiters {
		if len(v) == 1 {
			found[rune(v[0])] = struct{}{}
		}
	}

	for _, v := range Delimiters {
		if _, ok := found[v]; ok {
			return v
		}
	}

	return ','
}

// PeekDelimiter guesses the delimiter from the start of br without consuming
// anything, so the same reader can then be handed to a CSV parser.
func PeekDelimiter(br *bufio.Reader) rune {
	head, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return ','
	}

	return DetermineDelimiter(bytes.NewReader(head))
}
