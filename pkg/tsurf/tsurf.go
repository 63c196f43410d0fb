// Package tsurf parses GOCAD TSurf surface-mesh text files.
//
// A single .ts file may contain several independent surfaces, each opened
// by a "GOCAD TSurf" boundary line. Vertices are declared with VRTX/PVRTX
// records under file-local indices, ATOM records alias an already declared
// vertex under a new index, and TRGL records reference vertices through
// those file-local indices.
package tsurf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Category identifies which kind of surface file a mesh came from.
type Category string

// Surface categories, in the fixed order the converter processes them.
const (
	CategoryDEM     Category = "DEM"
	CategoryHorizon Category = "HORIZON"
	CategoryFault   Category = "FAULT"
	CategoryUnit    Category = "UNIT"
)

// SingleSurface reports whether files of this category hold exactly one
// surface by delivery convention.
func (c Category) SingleSurface() bool {
	return c == CategoryDEM
}

// DefaultID returns the surface id used when a surface carries no
// HEADER name record.
func (c Category) DefaultID() string {
	return strings.ToLower(string(c))
}

// Surface is one triangulated patch extracted from a TSurf file.
type Surface struct {
	ID       string
	Category Category

	// Vertices are stored in first-occurrence order; ATOM aliases do not
	// add entries here.
	Vertices [][3]float64

	// Triangles index into Vertices (0-based, already remapped from the
	// file-local record indices).
	Triangles [][3]int
}

// Diagnostic describes a surface that was discarded during parsing.
// Diagnostics are advisory: the rest of the file still parses.
type Diagnostic struct {
	Category Category
	Surface  string // surface name, or the category default if unnamed
	Line     int    // 1-based line of the offending record
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s surface %q dropped (line %d): %s", d.Category, d.Surface, d.Line, d.Message)
}

// surfaceBuilder accumulates one surface while its block is being read.
// The vertex array is the arena; index maps record indices to arena
// positions and is discarded when the surface finalizes.
type surfaceBuilder struct {
	name    string
	verts   [][3]float64
	tris    [][3]int
	index   map[int]int
	badLine int
	badMsg  string
}

func newSurfaceBuilder() *surfaceBuilder {
	return &surfaceBuilder{index: make(map[int]int)}
}

func (b *surfaceBuilder) fail(line int, format string, args ...any) {
	if b.badMsg != "" {
		return
	}
	b.badLine = line
	b.badMsg = fmt.Sprintf(format, args...)
}

func (b *surfaceBuilder) bad() bool {
	return b.badMsg != ""
}

// Parse reads a TSurf file and returns the surfaces it contains, in file
// order, plus diagnostics for any surfaces that had to be discarded.
// An empty input yields no surfaces and no diagnostics.
func Parse(data []byte, category Category) ([]Surface, []Diagnostic) {
	var (
		surfaces []Surface
		diags    []Diagnostic
		cur      *surfaceBuilder
		inHeader bool
	)

	flush := func() {
		if cur == nil {
			return
		}
		id := cur.name
		if id == "" {
			id = category.DefaultID()
		}
		if cur.bad() {
			diags = append(diags, Diagnostic{
				Category: category,
				Surface:  id,
				Line:     cur.badLine,
				Message:  cur.badMsg,
			})
			cur = nil
			return
		}
		surfaces = append(surfaces, Surface{
			ID:        id,
			Category:  category,
			Vertices:  cur.verts,
			Triangles: cur.tris,
		})
		cur = nil
	}

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "GOCAD TSurf") {
			flush()
			cur = newSurfaceBuilder()
			inHeader = false
			continue
		}

		if cur == nil {
			// Tolerate files that omit the opening boundary line.
			cur = newSurfaceBuilder()
		}

		if strings.HasPrefix(line, "HEADER") {
			inHeader = true
			continue
		}
		if inHeader {
			if strings.HasPrefix(line, "}") {
				inHeader = false
			} else if strings.HasPrefix(strings.ToLower(line), "name:") {
				cur.name = strings.TrimSpace(line[len("name:"):])
			}
			continue
		}

		if cur.bad() {
			// Surface already condemned; skip records until the next boundary.
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "VRTX", "PVRTX":
			parseVertex(cur, fields, lineNo+1)
		case "ATOM", "PATOM":
			parseAtom(cur, fields, lineNo+1)
		case "TRGL":
			parseTriangle(cur, fields, lineNo+1)
		default:
			// BSTONE, BORDER, TFACE, END and anything newer are ignored.
		}
	}
	flush()

	return surfaces, diags
}

// parseVertex handles "VRTX <id> <x> <y> <z> ..." records. Extra trailing
// fields (per-vertex properties on PVRTX) are ignored.
func parseVertex(b *surfaceBuilder, fields []string, line int) {
	if len(fields) < 5 {
		b.fail(line, "%s record has %d fields, want at least 5", fields[0], len(fields))
		return
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		b.fail(line, "vertex id %q is not an integer", fields[1])
		return
	}
	var pos [3]float64
	for i := 0; i < 3; i++ {
		pos[i], err = strconv.ParseFloat(fields[2+i], 64)
		if err != nil {
			b.fail(line, "vertex %d coordinate %q is not a number", id, fields[2+i])
			return
		}
	}
	b.index[id] = len(b.verts)
	b.verts = append(b.verts, pos)
}

// parseAtom handles "ATOM <id> <alias>" records. The aliased vertex must
// already exist; the new record index points at its arena position.
func parseAtom(b *surfaceBuilder, fields []string, line int) {
	if len(fields) < 3 {
		b.fail(line, "%s record has %d fields, want at least 3", fields[0], len(fields))
		return
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		b.fail(line, "atom id %q is not an integer", fields[1])
		return
	}
	alias, err := strconv.Atoi(fields[2])
	if err != nil {
		b.fail(line, "atom %d alias %q is not an integer", id, fields[2])
		return
	}
	pos, ok := b.index[alias]
	if !ok {
		b.fail(line, "atom %d references undeclared vertex %d", id, alias)
		return
	}
	b.index[id] = pos
}

// parseTriangle handles "TRGL <i> <j> <k>" records, resolving each record
// index through the surface-local index table.
func parseTriangle(b *surfaceBuilder, fields []string, line int) {
	if len(fields) < 4 {
		b.fail(line, "TRGL record has %d fields, want at least 4", len(fields))
		return
	}
	var tri [3]int
	for i := 0; i < 3; i++ {
		id, err := strconv.Atoi(fields[1+i])
		if err != nil {
			b.fail(line, "triangle index %q is not an integer", fields[1+i])
			return
		}
		pos, ok := b.index[id]
		if !ok {
			b.fail(line, "triangle references undeclared vertex %d", id)
			return
		}
		tri[i] = pos
	}
	b.tris = append(b.tris, tri)
}

// ParseFile parses a TSurf file from disk.
func ParseFile(path string, category Category) ([]Surface, []Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading TSurf file: %w", err)
	}
	surfaces, diags := Parse(data, category)
	return surfaces, diags, nil
}
