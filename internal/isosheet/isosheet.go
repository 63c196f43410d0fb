// Package isosheet parses the optional ISO/AGID metadata sheet (.xlsx)
// that accompanies institutional model deliveries.
//
// The sheet lists one metadata field per row (field / subfield /
// cardinality columns) with the model's values in a column whose header
// contains "modello". Rows with cardinality 1..Many accumulate into lists.
package isosheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name used by the published templates.
const DefaultSheet = "ISO_AGID_format"

// Sheet format errors.
var (
	ErrEmptySheet    = errors.New("ISO sheet has no rows")
	ErrNoValueColumn = errors.New("ISO sheet has no model value column")
)

// Author is one model author entry.
type Author struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

// Extent is the spatial extent block.
type Extent struct {
	SRS       string      `json:"srs"`
	PolygonXY [][]float64 `json:"polygon_xy"`
	Zmin      *float64    `json:"zmin"`
	Zmax      *float64    `json:"zmax"`
}

// Location is the toponymic location block.
type Location struct {
	Toponym    string   `json:"toponym"`
	CountryURI string   `json:"country_uri"`
	RegionURIs []string `json:"region_uris"`
	CityURI    string   `json:"city_uri"`
}

// Metadata is the compact iso_agid object embedded in the container
// metadata alongside the core descriptor.
type Metadata struct {
	Identifier        string   `json:"identifier"`
	Title             string   `json:"title"`
	Keywords          []string `json:"keywords"`
	CreationDateTime  string   `json:"creation_date_time"`
	Authors           []Author `json:"authors"`
	Extent            Extent   `json:"extent"`
	NominalResolution string   `json:"nominal_resolution"`
	Location          Location `json:"location"`
}

// rawMap preserves sheet row order so prefix lookups are deterministic.
type rawMap struct {
	keys   []string
	values map[string]any // string or []string
}

func (m *rawMap) add(key, value, cardinality string) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	existing, seen := m.values[key]
	if strings.Contains(cardinality, "1..Many") && seen {
		switch v := existing.(type) {
		case []string:
			m.values[key] = append(v, value)
		case string:
			m.values[key] = []string{v, value}
		}
		return
	}
	if !seen {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// firstByPrefix returns the first string value whose key starts with prefix.
func (m *rawMap) firstByPrefix(prefix string) string {
	for _, key := range m.keys {
		if strings.HasPrefix(key, prefix) {
			if s, ok := m.values[key].(string); ok {
				return s
			}
			return ""
		}
	}
	return ""
}

// ParseFile reads the ISO/AGID sheet from an .xlsx file.
func ParseFile(path string) (*Metadata, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening ISO sheet: %w", err)
	}
	defer f.Close()
	return Parse(f, DefaultSheet)
}

// Parse reads the given sheet of an open workbook.
func Parse(f *excelize.File, sheet string) (*Metadata, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	header := rows[0]
	valueCol := -1
	for i, name := range header {
		if strings.Contains(strings.ToLower(name), "modello") {
			valueCol = i
			break
		}
	}
	if valueCol < 0 {
		return nil, ErrNoValueColumn
	}

	raw := &rawMap{}
	for _, row := range rows[1:] {
		value := cell(row, valueCol)
		if value == "" {
			continue
		}

		var parts []string
		for _, col := range []int{0, 1} {
			if v := cell(row, col); v != "" {
				parts = append(parts, v)
			}
		}
		cardinality := cell(row, 2)
		if cardinality != "" {
			parts = append(parts, cardinality)
		}
		raw.add(strings.Join(parts, " / "), value, cardinality)
	}

	regionURI := raw.firstByPrefix("Region")
	var regionURIs []string
	if regionURI != "" {
		regionURIs = []string{regionURI}
	}

	return &Metadata{
		Identifier:       raw.firstByPrefix("Identifier"),
		Title:            raw.firstByPrefix("Title"),
		Keywords:         parseKeywords(raw),
		CreationDateTime: raw.firstByPrefix("Creation date time"),
		Authors:          collectAuthors(raw),
		Extent: Extent{
			SRS:       raw.firstByPrefix("SRS"),
			PolygonXY: parsePolygon(raw.firstByPrefix("Shape perimeter")),
			Zmin:      parseFloat(raw.firstByPrefix("Zmin")),
			Zmax:      parseFloat(raw.firstByPrefix("Zmax")),
		},
		NominalResolution: raw.firstByPrefix("Nominal scale of the model"),
		Location: Location{
			Toponym:    raw.firstByPrefix("Toponym"),
			CountryURI: raw.firstByPrefix("Country"),
			RegionURIs: regionURIs,
			CityURI:    raw.firstByPrefix("City"),
		},
	}, nil
}

// cell returns a trimmed cell value, tolerating short rows.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseKeywords splits comma-separated keyword values and deduplicates
// them, preserving first-seen order.
func parseKeywords(raw *rawMap) []string {
	var keywords []string
	seen := make(map[string]bool)

	appendSplit := func(s string) {
		for _, k := range strings.Split(s, ",") {
			k = strings.TrimSpace(k)
			if k != "" && !seen[k] {
				seen[k] = true
				keywords = append(keywords, k)
			}
		}
	}

	for _, key := range raw.keys {
		if !strings.HasPrefix(key, "Keyword") {
			continue
		}
		switch v := raw.values[key].(type) {
		case string:
			appendSplit(v)
		case []string:
			for _, item := range v {
				appendSplit(item)
			}
		}
	}
	return keywords
}

// parsePolygon extracts [x, y] pairs from perimeter text lines such as
// "X 183559.324 - Y 4968420.614". Lines without both markers are skipped.
func parsePolygon(text string) [][]float64 {
	if text == "" {
		return nil
	}

	var coords [][]float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ToLower(line))
		if line == "" || !strings.Contains(line, "x") || !strings.Contains(line, "y") {
			continue
		}

		cleaned := strings.NewReplacer("x", " ", "y", " ", "-", " ", ":", " ").Replace(line)
		var nums []float64
		for _, token := range strings.Fields(cleaned) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
			if err != nil {
				continue
			}
			nums = append(nums, v)
			if len(nums) == 2 {
				break
			}
		}
		if len(nums) == 2 {
			coords = append(coords, nums)
		}
	}
	return coords
}

// parseFloat parses a decimal value that may use a comma separator.
func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// collectAuthors gathers author rows; the sheet carries no structured
// organization field, so it stays empty.
func collectAuthors(raw *rawMap) []Author {
	var authors []Author
	for _, key := range raw.keys {
		if !strings.HasPrefix(key, "Authors") {
			continue
		}
		switch v := raw.values[key].(type) {
		case string:
			authors = append(authors, Author{Name: v})
		case []string:
			for _, name := range v {
				authors = append(authors, Author{Name: name})
			}
		}
	}
	return authors
}
