package tsurf

import (
	"strings"
	"testing"
)

func TestParse_EmptyFile(t *testing.T) {
	surfaces, diags := Parse(nil, CategoryHorizon)
	if len(surfaces) != 0 {
		t.Errorf("expected no surfaces, got %d", len(surfaces))
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %d", len(diags))
	}
}

func TestParse_SingleSurface(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: SRF_0001_001
}
TFACE
VRTX 1 0.0 0.0 0.0
VRTX 2 1.0 0.0 0.0
VRTX 3 0.0 1.0 0.0
TRGL 1 2 3
END
`
	surfaces, diags := Parse([]byte(input), CategoryHorizon)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(surfaces) != 1 {
		t.Fatalf("expected 1 surface, got %d", len(surfaces))
	}

	s := surfaces[0]
	if s.ID != "SRF_0001_001" {
		t.Errorf("expected id SRF_0001_001, got %q", s.ID)
	}
	if s.Category != CategoryHorizon {
		t.Errorf("expected category HORIZON, got %s", s.Category)
	}
	if len(s.Vertices) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(s.Vertices))
	}
	if len(s.Triangles) != 1 {
		t.Fatalf("expected 1 triangle, got %d", len(s.Triangles))
	}
	if s.Triangles[0] != [3]int{0, 1, 2} {
		t.Errorf("expected remapped triangle (0,1,2), got %v", s.Triangles[0])
	}
	if s.Vertices[1] != [3]float64{1, 0, 0} {
		t.Errorf("vertex 2 = %v, expected (1,0,0)", s.Vertices[1])
	}
}

func TestParse_AtomAliasesAddNoVertices(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: S
}
VRTX 10 0 0 0
VRTX 20 1 0 0
VRTX 30 0 1 0
ATOM 40 10
ATOM 50 30
TRGL 40 20 50
END
`
	surfaces, diags := Parse([]byte(input), CategoryFault)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(surfaces) != 1 {
		t.Fatalf("expected 1 surface, got %d", len(surfaces))
	}

	s := surfaces[0]
	if len(s.Vertices) != 3 {
		t.Errorf("ATOM records must not add vertices: got %d, want 3", len(s.Vertices))
	}
	if s.Triangles[0] != [3]int{0, 1, 2} {
		t.Errorf("aliased triangle = %v, expected (0,1,2)", s.Triangles[0])
	}
}

func TestParse_AtomUndeclaredAlias(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: S
}
VRTX 1 0 0 0
ATOM 2 99
END
`
	surfaces, diags := Parse([]byte(input), CategoryFault)
	if len(surfaces) != 0 {
		t.Errorf("expected surface to be discarded, got %d surfaces", len(surfaces))
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if !strings.Contains(diags[0].Message, "undeclared vertex 99") {
		t.Errorf("unexpected diagnostic message: %s", diags[0].Message)
	}
}

func TestParse_MultiSurfaceIsolation(t *testing.T) {
	// The second surface must not see vertices declared in the first.
	input := `GOCAD TSurf 1
HEADER {
name: A
}
VRTX 1 0 0 0
VRTX 2 1 0 0
VRTX 3 0 1 0
TRGL 1 2 3
GOCAD TSurf 1
HEADER {
name: B
}
VRTX 4 5 5 5
TRGL 1 2 3
END
`
	surfaces, diags := Parse([]byte(input), CategoryHorizon)
	if len(surfaces) != 1 {
		t.Fatalf("expected 1 surviving surface, got %d", len(surfaces))
	}
	if surfaces[0].ID != "A" {
		t.Errorf("surviving surface should be A, got %q", surfaces[0].ID)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic for B, got %d", len(diags))
	}
	if diags[0].Surface != "B" {
		t.Errorf("diagnostic should name surface B, got %q", diags[0].Surface)
	}
}

func TestParse_TwoSurfacesBothValid(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: H1
}
VRTX 1 0 0 0
VRTX 2 1 0 0
VRTX 3 0 1 0
TRGL 1 2 3
END
GOCAD TSurf 1
HEADER {
name: H2
}
END
`
	surfaces, diags := Parse([]byte(input), CategoryHorizon)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(surfaces) != 2 {
		t.Fatalf("expected 2 surfaces, got %d", len(surfaces))
	}

	h1, h2 := surfaces[0], surfaces[1]
	if h1.ID != "H1" || len(h1.Vertices) != 3 || len(h1.Triangles) != 1 {
		t.Errorf("H1 = %q with %d vertices / %d triangles, expected 3/1",
			h1.ID, len(h1.Vertices), len(h1.Triangles))
	}
	// Zero-geometry surfaces are retained, not dropped.
	if h2.ID != "H2" || len(h2.Vertices) != 0 || len(h2.Triangles) != 0 {
		t.Errorf("H2 = %q with %d vertices / %d triangles, expected 0/0",
			h2.ID, len(h2.Vertices), len(h2.Triangles))
	}
}

func TestParse_BadCoordinateDiscardsOnlyThatSurface(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: BAD
}
VRTX 1 0 0 not-a-number
GOCAD TSurf 1
HEADER {
name: GOOD
}
VRTX 1 0 0 0
VRTX 2 1 0 0
VRTX 3 0 1 0
TRGL 1 2 3
END
`
	surfaces, diags := Parse([]byte(input), CategoryUnit)
	if len(surfaces) != 1 || surfaces[0].ID != "GOOD" {
		t.Fatalf("expected surface GOOD to survive, got %+v", surfaces)
	}
	if len(diags) != 1 || diags[0].Surface != "BAD" {
		t.Fatalf("expected diagnostic for BAD, got %v", diags)
	}
}

func TestParse_UnknownRecordsIgnored(t *testing.T) {
	input := `GOCAD TSurf 1
HEADER {
name: S
}
TFACE
VRTX 1 0 0 0
VRTX 2 1 0 0
VRTX 3 0 1 0
BSTONE 1
BORDER 4 1 2
TRGL 1 2 3
SOME_FUTURE_RECORD a b c
END
`
	surfaces, diags := Parse([]byte(input), CategoryHorizon)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(surfaces) != 1 || len(surfaces[0].Triangles) != 1 {
		t.Fatalf("unknown records should be ignored, got %+v", surfaces)
	}
}

func TestParse_UnnamedSingleSurfaceDefaultsToCategory(t *testing.T) {
	input := `GOCAD TSurf 1
VRTX 1 0 0 10
VRTX 2 1 0 11
VRTX 3 0 1 12
TRGL 1 2 3
END
`
	surfaces, _ := Parse([]byte(input), CategoryDEM)
	if len(surfaces) != 1 {
		t.Fatalf("expected 1 surface, got %d", len(surfaces))
	}
	if surfaces[0].ID != "dem" {
		t.Errorf("expected default id \"dem\", got %q", surfaces[0].ID)
	}
}

func TestParse_WhitespaceTolerance(t *testing.T) {
	input := "GOCAD TSurf 1\n" +
		"HEADER {\n" +
		"name: S\n" +
		"}\n" +
		"  VRTX   1   0.5    0.5   0.5  \n" +
		"\tVRTX 2 1 0 0\n" +
		"VRTX 3 0 1 0\n" +
		"TRGL  1  2  3\n"
	surfaces, diags := Parse([]byte(input), CategoryHorizon)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(surfaces) != 1 || len(surfaces[0].Vertices) != 3 {
		t.Fatalf("whitespace should be tolerated, got %+v", surfaces)
	}
	if surfaces[0].Vertices[0] != [3]float64{0.5, 0.5, 0.5} {
		t.Errorf("vertex 1 = %v", surfaces[0].Vertices[0])
	}
}

func TestCategory_SingleSurface(t *testing.T) {
	tests := []struct {
		category Category
		expected bool
	}{
		{CategoryDEM, true},
		{CategoryHorizon, false},
		{CategoryFault, false},
		{CategoryUnit, false},
	}
	for _, tc := range tests {
		if tc.category.SingleSurface() != tc.expected {
			t.Errorf("%s.SingleSurface() = %v, expected %v",
				tc.category, tc.category.SingleSurface(), tc.expected)
		}
	}
}
