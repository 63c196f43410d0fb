package glb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geoit3d/geoconv/internal/palette"
	"github.com/geoit3d/geoconv/internal/scene"
	"github.com/geoit3d/geoconv/pkg/tsurf"
)

// buildRawGLB assembles a minimal GLB container from a JSON payload and a
// binary chunk, with spec-conformant padding and lengths.
func buildRawGLB(t *testing.T, jsonPayload string, bin []byte) []byte {
	t.Helper()

	jsonBytes := []byte(jsonPayload)
	for len(jsonBytes)%4 != 0 {
		jsonBytes = append(jsonBytes, ' ')
	}
	for len(bin)%4 != 0 {
		bin = append(bin, 0)
	}

	total := 12 + 8 + len(jsonBytes) + 8 + len(bin)
	buf := new(bytes.Buffer)
	buf.WriteString("glTF")
	binary.Write(buf, binary.LittleEndian, uint32(2))
	binary.Write(buf, binary.LittleEndian, uint32(total))
	binary.Write(buf, binary.LittleEndian, uint32(len(jsonBytes)))
	binary.Write(buf, binary.LittleEndian, uint32(chunkTypeJSON))
	buf.Write(jsonBytes)
	binary.Write(buf, binary.LittleEndian, uint32(len(bin)))
	binary.Write(buf, binary.LittleEndian, uint32(0x004E4942)) // "BIN"
	buf.Write(bin)
	return buf.Bytes()
}

// chunkLengths reads back the outer total length and the JSON chunk length.
func chunkLengths(raw []byte) (total, jsonLen uint32) {
	return binary.LittleEndian.Uint32(raw[8:12]), binary.LittleEndian.Uint32(raw[12:16])
}

func TestPatchHeaderChunk_LengthInvariants(t *testing.T) {
	bin := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	raw := buildRawGLB(t, `{"asset":{"version":"2.0"}}`, bin)

	newJSON := []byte(`{"asset":{"version":"2.0","extras":{"k":"a much longer payload than before"}}}`)
	patched, err := PatchHeaderChunk(raw, newJSON)
	if err != nil {
		t.Fatalf("PatchHeaderChunk failed: %v", err)
	}

	total, jsonLen := chunkLengths(patched)
	if jsonLen%4 != 0 {
		t.Errorf("JSON chunk length %d is not a multiple of 4", jsonLen)
	}
	binChunk := patched[20+jsonLen:]
	if uint32(len(patched)) != total {
		t.Errorf("total length field %d != actual %d", total, len(patched))
	}
	if int(total) != 12+8+int(jsonLen)+len(binChunk) {
		t.Errorf("total %d does not add up from chunks", total)
	}

	// Padding must be ASCII spaces, not NULs.
	payload := patched[20 : 20+jsonLen]
	trimmed := bytes.TrimRight(payload, " ")
	if !bytes.Equal(trimmed, newJSON) {
		t.Errorf("JSON payload mismatch: %s", payload)
	}
	for _, b := range payload[len(trimmed):] {
		if b != ' ' {
			t.Errorf("padding byte 0x%02X, want 0x20", b)
		}
	}

	// The binary chunk must be byte-identical, header included.
	origBin := raw[len(raw)-8-8:]
	if !bytes.Equal(binChunk, origBin) {
		t.Error("binary chunk was modified by the patch")
	}
}

func TestPatchHeaderChunk_RejectsGarbage(t *testing.T) {
	if _, err := PatchHeaderChunk([]byte("not a glb"), []byte("{}")); err == nil {
		t.Error("expected error for non-GLB input")
	}

	raw := buildRawGLB(t, `{}`, nil)
	raw[0] = 'X'
	if _, err := PatchHeaderChunk(raw, []byte("{}")); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestInjectExtras(t *testing.T) {
	raw := buildRawGLB(t, `{"asset":{"version":"2.0"},"scenes":[{"nodes":[0]}]}`, []byte{0, 0, 0, 0})

	extras := map[string]any{
		"core_descriptor": map[string]any{"code": "F184"},
		"surfaces":        []any{},
	}
	patched, err := InjectExtras(raw, extras, "F184")
	if err != nil {
		t.Fatalf("InjectExtras failed: %v", err)
	}

	_, jsonLen := chunkLengths(patched)
	var root map[string]any
	if err := json.Unmarshal(patched[20:20+jsonLen], &root); err != nil {
		t.Fatalf("patched JSON does not parse: %v", err)
	}

	asset := root["asset"].(map[string]any)
	got, ok := asset["extras"].(map[string]any)
	if !ok {
		t.Fatalf("asset.extras is %T, want object", asset["extras"])
	}
	core := got["core_descriptor"].(map[string]any)
	if core["code"] != "F184" {
		t.Errorf("asset.extras.core_descriptor.code = %v", core["code"])
	}

	sc := root["scenes"].([]any)[0].(map[string]any)
	scExtras := sc["extras"].(map[string]any)
	if scExtras["model_code"] != "F184" {
		t.Errorf("scenes[0].extras.model_code = %v", scExtras["model_code"])
	}
}

func TestInjectExtras_MalformedJSONIsFatal(t *testing.T) {
	raw := buildRawGLB(t, `{"asset":`, nil)
	if _, err := InjectExtras(raw, map[string]any{}, ""); err == nil {
		t.Error("expected error for malformed JSON chunk")
	}
}

func TestInjectExtras_SetsBufferViewTargets(t *testing.T) {
	payload := `{
		"asset":{"version":"2.0"},
		"meshes":[{"primitives":[{"attributes":{"POSITION":0},"indices":1}]}],
		"accessors":[{"bufferView":0},{"bufferView":1}],
		"bufferViews":[{"buffer":0},{"buffer":0}]
	}`
	raw := buildRawGLB(t, payload, []byte{0, 0, 0, 0})

	patched, err := InjectExtras(raw, map[string]any{}, "")
	if err != nil {
		t.Fatalf("InjectExtras failed: %v", err)
	}

	_, jsonLen := chunkLengths(patched)
	var root map[string]any
	if err := json.Unmarshal(patched[20:20+jsonLen], &root); err != nil {
		t.Fatalf("patched JSON does not parse: %v", err)
	}

	bufferViews := root["bufferViews"].([]any)
	if target := bufferViews[0].(map[string]any)["target"]; target != float64(34962) {
		t.Errorf("position bufferView target = %v, want 34962", target)
	}
	if target := bufferViews[1].(map[string]any)["target"]; target != float64(34963) {
		t.Errorf("index bufferView target = %v, want 34963", target)
	}
}

func testGraph() *scene.Graph {
	red := palette.RGB{R: 200, G: 30, B: 30}
	surfaces := []tsurf.Surface{
		{
			ID:        "H1",
			Category:  tsurf.CategoryHorizon,
			Vertices:  [][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			Triangles: [][3]int{{0, 1, 2}},
		},
		{
			ID:       "H2",
			Category: tsurf.CategoryHorizon,
		},
	}
	return &scene.Graph{
		Nodes: []scene.Node{
			{Surface: surfaces[0], NodeName: "HORIZON_H1", Color: &red},
			{Surface: surfaces[1], NodeName: "HORIZON_H2"},
		},
		Meta: []scene.SurfaceMeta{
			{Category: "HORIZON", NodeName: "HORIZON_H1", SurfaceID: "H1"},
			{Category: "HORIZON", NodeName: "HORIZON_H2", SurfaceID: "H2"},
		},
	}
}

func TestWrite_EndToEnd(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "model.glb")
	extras := map[string]any{"core_descriptor": map[string]any{"code": "F184"}}

	n, err := Write(testGraph(), extras, "F184", outPath)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if int64(len(raw)) != n {
		t.Errorf("Write reported %d bytes, file has %d", n, len(raw))
	}
	if string(raw[0:4]) != "glTF" {
		t.Fatal("output does not start with GLB magic")
	}

	total, jsonLen := chunkLengths(raw)
	if uint32(len(raw)) != total {
		t.Errorf("total length field %d != file size %d", total, len(raw))
	}
	if jsonLen%4 != 0 {
		t.Errorf("JSON chunk length %d not 4-aligned", jsonLen)
	}

	var root map[string]any
	if err := json.Unmarshal(raw[20:20+jsonLen], &root); err != nil {
		t.Fatalf("JSON chunk does not parse: %v", err)
	}

	// Both nodes present, the triangle-less one without a mesh.
	nodes := root["nodes"].([]any)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	h1 := nodes[0].(map[string]any)
	h2 := nodes[1].(map[string]any)
	if h1["name"] != "HORIZON_H1" || h2["name"] != "HORIZON_H2" {
		t.Errorf("node names = %v, %v", h1["name"], h2["name"])
	}
	if _, ok := h1["mesh"]; !ok {
		t.Error("H1 should reference a mesh")
	}
	if _, ok := h2["mesh"]; ok {
		t.Error("H2 is metadata-only and must not reference a mesh")
	}

	asset := root["asset"].(map[string]any)
	if asset["version"] != "2.0" {
		t.Errorf("asset.version = %v", asset["version"])
	}
	embedded := asset["extras"].(map[string]any)
	want, _ := json.Marshal(extras)
	got, _ := json.Marshal(embedded)
	if string(got) != string(want) {
		t.Errorf("embedded extras %s != source %s", got, want)
	}

	// No stray temp files next to the output.
	entries, _ := os.ReadDir(filepath.Dir(outPath))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".geoconv-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestWrite_PatchFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "model.glb")

	// Channels are not JSON-serializable, so the metadata injection fails
	// after the document is built but before anything reaches disk.
	extras := map[string]any{"bad": make(chan int)}

	if _, err := Write(testGraph(), extras, "F184", outPath); err == nil {
		t.Fatal("expected an error for unserializable metadata")
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Errorf("output file must not exist after a failed write: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".geoconv-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
