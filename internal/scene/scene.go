// Package scene assembles parsed surfaces, attribute tables, and the color
// scheme into the scene graph the container writer serializes.
package scene

import (
	"fmt"

	"github.com/geoit3d/geoconv/internal/attrs"
	"github.com/geoit3d/geoconv/internal/palette"
	"github.com/geoit3d/geoconv/pkg/tsurf"
)

// Node is one surface with its resolved attributes and color.
type Node struct {
	Surface    tsurf.Surface
	NodeName   string
	Attributes attrs.Row
	Color      *palette.RGB // nil leaves the surface unshaded
}

// SurfaceMeta is the per-surface entry embedded in the container metadata
// and in the external metadata copy.
type SurfaceMeta struct {
	Category   string    `json:"category"`
	NodeName   string    `json:"node_name"`
	SurfaceID  string    `json:"surface_id"`
	Attributes attrs.Row `json:"attributes"`
}

// Graph is the assembled scene: nodes and their metadata entries, in the
// same order the surfaces were discovered.
type Graph struct {
	Nodes []Node
	Meta  []SurfaceMeta
}

// TriangleCount returns the total triangle count across all nodes.
func (g *Graph) TriangleCount() int {
	total := 0
	for _, n := range g.Nodes {
		total += len(n.Surface.Triangles)
	}
	return total
}

// Diagnostic reports an advisory condition met during assembly (attribute
// row miss, unresolved color code). Assembly never fails on these.
type Diagnostic struct {
	NodeName string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.NodeName, d.Message)
}

// colorColumn returns the attribute column holding the color code for a
// category, or "" when the category has none.
func colorColumn(c tsurf.Category) string {
	switch c {
	case tsurf.CategoryFault:
		return "color_fault"
	case tsurf.CategoryHorizon:
		return "color_surface"
	case tsurf.CategoryUnit:
		return "color_unit"
	default:
		return ""
	}
}

// Assemble joins each surface to its attribute row and palette color and
// assigns stable node names. Surfaces must already be in the fixed
// category-then-encounter order; assembly preserves it. Duplicate node
// names within the input get a numeric suffix in encounter order.
func Assemble(surfaces []tsurf.Surface, tables map[tsurf.Category]*attrs.Table, scheme *palette.Scheme) (*Graph, []Diagnostic) {
	graph := &Graph{
		Nodes: make([]Node, 0, len(surfaces)),
		Meta:  make([]SurfaceMeta, 0, len(surfaces)),
	}
	var diags []Diagnostic
	used := make(map[string]bool)

	for _, surf := range surfaces {
		name := nodeName(surf)
		if used[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !used[name] {
					break
				}
			}
		}
		used[name] = true

		row, found := tables[surf.Category].Lookup(surf.ID)
		if !found && tables[surf.Category].Len() > 0 {
			diags = append(diags, Diagnostic{
				NodeName: name,
				Message:  fmt.Sprintf("no attribute row for id %q", surf.ID),
			})
		}

		var color *palette.RGB
		if col := colorColumn(surf.Category); col != "" {
			if code, ok := row.Get(col); ok && code != "" {
				if rgb, resolved := scheme.Resolve(code); resolved {
					color = &rgb
				} else {
					diags = append(diags, Diagnostic{
						NodeName: name,
						Message:  fmt.Sprintf("color code %q not in palette", code),
					})
				}
			}
		}

		graph.Nodes = append(graph.Nodes, Node{
			Surface:    surf,
			NodeName:   name,
			Attributes: row,
			Color:      color,
		})
		graph.Meta = append(graph.Meta, SurfaceMeta{
			Category:   string(surf.Category),
			NodeName:   name,
			SurfaceID:  surf.ID,
			Attributes: row,
		})
	}

	return graph, diags
}

// nodeName derives the base node name: bare category for single-surface
// categories, <CATEGORY>_<id> otherwise.
func nodeName(s tsurf.Surface) string {
	if s.Category.SingleSurface() {
		return string(s.Category)
	}
	return fmt.Sprintf("%s_%s", s.Category, s.ID)
}
