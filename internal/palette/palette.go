// Package palette maps symbolic color codes to RGB triples.
package palette

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// RGB is a color with 0–255 channels.
type RGB struct {
	R, G, B uint8
}

// Scheme is a read-only mapping from color codes to colors.
type Scheme struct {
	colors map[string]RGB
}

// Parse reads a palette CSV with columns code,red,green,blue. Rows with
// non-numeric or out-of-range channels are rejected.
func Parse(data []byte) (*Scheme, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading palette csv: %w", err)
	}

	scheme := &Scheme{colors: make(map[string]RGB)}
	for i, record := range records {
		if i == 0 {
			// Header row.
			continue
		}
		if len(record) < 4 {
			return nil, fmt.Errorf("palette row %d has %d columns, want 4", i+1, len(record))
		}
		code := record[0]
		if code == "" {
			continue
		}

		var channels [3]uint8
		for j := 0; j < 3; j++ {
			v, err := strconv.Atoi(record[1+j])
			if err != nil || v < 0 || v > 255 {
				return nil, fmt.Errorf("palette row %d: channel %q out of range", i+1, record[1+j])
			}
			channels[j] = uint8(v)
		}
		scheme.colors[code] = RGB{R: channels[0], G: channels[1], B: channels[2]}
	}
	return scheme, nil
}

// ParseFile reads a palette CSV from disk.
func ParseFile(path string) (*Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading palette file: %w", err)
	}
	return Parse(data)
}

// Resolve looks up a color code. An empty code, an unknown code, or a nil
// scheme all yield no color; none of these is an error.
func (s *Scheme) Resolve(code string) (RGB, bool) {
	if s == nil || code == "" {
		return RGB{}, false
	}
	rgb, ok := s.colors[code]
	return rgb, ok
}

// Len returns the number of codes in the scheme.
func (s *Scheme) Len() int {
	if s == nil {
		return 0
	}
	return len(s.colors)
}
