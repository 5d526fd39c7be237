package ifcbdata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// Value is one header entry. When every comma-separated token parses as a
// number, Numbers is set; otherwise Strings holds the raw tokens.
type Value struct {
	Numbers []float64 `json:"numbers,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

func (v Value) Numeric() bool {
	return v.Numbers != nil
}

// Metadata is the parsed instrument header of a sample.
type Metadata map[string]Value

// Float returns the first numeric value stored under key. ok is false when
// the key is absent or its value is not numeric.
func (m Metadata) Float(key string) (value float64, ok bool) {
	v, exists := m[key]
	if !exists || !v.Numeric() || len(v.Numbers) == 0 {
		return 0, false
	}

	return v.Numbers[0], true
}

// First returns the first token stored under key as text, or def when the
// key is absent.
func (m Metadata) First(key, def string) string {
	v, exists := m[key]
	if !exists {
		return def
	}
	if v.Numeric() {
		if len(v.Numbers) == 0 {
			return def
		}
		return strconv.FormatFloat(v.Numbers[0], 'g', -1, 64)
	}
	if len(v.Strings) == 0 {
		return def
	}

	return v.Strings[0]
}

// ParseHeader reads "key: v1,v2,..." lines. Lines without the ": "
// separator are skipped, and anything after a second separator is dropped.
func ParseHeader(r io.Reader) (Metadata, error) {
	out := make(Metadata)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Split(line, ": ")
		if len(parts) < 2 {
			continue
		}

		out[parts[0]] = parseValue(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

func parseValue(raw string) Value {
	tokens := strings.Split(raw, ",")

	numbers := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		f, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return Value{Strings: tokens}
		}
		numbers = append(numbers, f)
	}

	return Value{Numbers: numbers}
}

// Header opens and parses the .hdr file of a sample.
func (s Source) Header(ctx context.Context, ref SampleRef) (Metadata, error) {
	rc, err := s.open(ctx, s.HeaderPath(ref))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	meta, err := ParseHeader(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.HeaderPath(ref), err)
	}

	return meta, nil
}
