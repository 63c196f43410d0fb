// Package glb serializes the assembled scene graph to a GLB container and
// patches the container's JSON chunk to carry the full model metadata.
//
// The glTF library's own extras field is not trusted with the metadata
// payload, so after the native binary export the JSON chunk is re-opened,
// patched, re-padded and re-measured at the byte level.
package glb

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/geoit3d/geoconv/internal/palette"
	"github.com/geoit3d/geoconv/internal/scene"
)

// GLB container errors. Any of these during a write is fatal: no partial
// file is left at the destination.
var (
	ErrNotGLB         = errors.New("not a GLB container")
	ErrMalformedChunk = errors.New("malformed GLB chunk layout")
	ErrHeaderJSON     = errors.New("GLB JSON chunk is not valid JSON")
)

const (
	glbHeaderSize  = 12
	chunkHeaderLen = 8
	chunkTypeJSON  = 0x4E4F534A // "JSON"
)

// Write serializes the scene graph to a GLB file at outPath, embedding
// extras in asset.extras and modelCode (when non-empty) in
// scenes[0].extras.model_code. The file appears at outPath only on
// success. Returns the number of bytes written.
func Write(graph *scene.Graph, extras any, modelCode string, outPath string) (int64, error) {
	doc := buildDocument(graph)

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encoding GLB: %w", err)
	}

	patched, err := InjectExtras(buf.Bytes(), extras, modelCode)
	if err != nil {
		return 0, fmt.Errorf("patching GLB metadata: %w", err)
	}

	if err := writeFileAtomic(outPath, patched); err != nil {
		return 0, err
	}
	return int64(len(patched)), nil
}

// buildDocument converts the scene graph into a glTF document. Surfaces
// without triangles become metadata-only nodes (name, no mesh).
func buildDocument(graph *scene.Graph) *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "geoconv"

	materials := make(map[palette.RGB]uint32)

	for _, node := range graph.Nodes {
		gltfNode := &gltf.Node{Name: node.NodeName}

		if len(node.Surface.Triangles) > 0 {
			positions := make([][3]float32, len(node.Surface.Vertices))
			for i, v := range node.Surface.Vertices {
				positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
			}
			indices := make([]uint32, 0, len(node.Surface.Triangles)*3)
			for _, tri := range node.Surface.Triangles {
				indices = append(indices, uint32(tri[0]), uint32(tri[1]), uint32(tri[2]))
			}

			prim := &gltf.Primitive{
				Attributes: map[string]uint32{
					gltf.POSITION: modeler.WritePosition(doc, positions),
				},
				Indices: gltf.Index(modeler.WriteIndices(doc, indices)),
			}
			if node.Color != nil {
				prim.Material = gltf.Index(materialFor(doc, materials, *node.Color))
			}

			mesh := &gltf.Mesh{Name: node.NodeName, Primitives: []*gltf.Primitive{prim}}
			doc.Meshes = append(doc.Meshes, mesh)
			gltfNode.Mesh = gltf.Index(uint32(len(doc.Meshes) - 1))
		}

		doc.Nodes = append(doc.Nodes, gltfNode)
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	return doc
}

// materialFor returns the material index for a color, creating one
// material per distinct color.
func materialFor(doc *gltf.Document, cache map[palette.RGB]uint32, rgb palette.RGB) uint32 {
	if idx, ok := cache[rgb]; ok {
		return idx
	}
	material := &gltf.Material{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{
				float32(rgb.R) / 255,
				float32(rgb.G) / 255,
				float32(rgb.B) / 255,
				1,
			},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
		DoubleSided: true,
	}
	doc.Materials = append(doc.Materials, material)
	idx := uint32(len(doc.Materials) - 1)
	cache[rgb] = idx
	return idx
}

// InjectExtras re-opens the JSON chunk of a serialized GLB, sets
// asset.extras to the given object, optionally sets
// scenes[0].extras.model_code, assigns bufferView targets, and rebuilds
// the container with correct chunk and total lengths.
func InjectExtras(raw []byte, extras any, modelCode string) ([]byte, error) {
	jsonChunk, _, err := readChunks(raw)
	if err != nil {
		return nil, err
	}

	var root map[string]any
	if err := json.Unmarshal(jsonChunk, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeaderJSON, err)
	}

	asset, ok := root["asset"].(map[string]any)
	if !ok {
		asset = map[string]any{}
		root["asset"] = asset
	}
	if _, ok := asset["version"]; !ok {
		asset["version"] = "2.0"
	}
	asset["extras"] = extras

	if modelCode != "" {
		if scenes, ok := root["scenes"].([]any); ok && len(scenes) > 0 {
			if sc, ok := scenes[0].(map[string]any); ok {
				scExtras, _ := sc["extras"].(map[string]any)
				if scExtras == nil {
					scExtras = map[string]any{}
				}
				scExtras["model_code"] = modelCode
				sc["extras"] = scExtras
			}
		}
	}

	setBufferViewTargets(root)

	newJSON, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding: %v", ErrHeaderJSON, err)
	}
	return PatchHeaderChunk(raw, newJSON)
}

// PatchHeaderChunk replaces the JSON chunk of a GLB container with
// jsonText, padding it to a 4-byte boundary with ASCII spaces and
// rewriting the chunk-length and total-length fields. The binary chunk is
// carried over untouched.
func PatchHeaderChunk(raw []byte, jsonText []byte) ([]byte, error) {
	_, binPart, err := readChunks(raw)
	if err != nil {
		return nil, err
	}

	padded := jsonText
	if pad := (4 - len(jsonText)%4) % 4; pad > 0 {
		padded = make([]byte, len(jsonText)+pad)
		copy(padded, jsonText)
		for i := len(jsonText); i < len(padded); i++ {
			padded[i] = ' '
		}
	}

	total := glbHeaderSize + chunkHeaderLen + len(padded) + len(binPart)

	out := make([]byte, 0, total)
	out = append(out, "glTF"...)
	out = binary.LittleEndian.AppendUint32(out, 2)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(padded)))
	out = binary.LittleEndian.AppendUint32(out, chunkTypeJSON)
	out = append(out, padded...)
	out = append(out, binPart...)
	return out, nil
}

// readChunks splits a GLB container into its JSON chunk payload and the
// remaining bytes (the binary chunk, header included).
func readChunks(raw []byte) (jsonChunk, binPart []byte, err error) {
	if len(raw) < glbHeaderSize+chunkHeaderLen {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrNotGLB, len(raw))
	}
	if string(raw[0:4]) != "glTF" {
		return nil, nil, fmt.Errorf("%w: bad magic", ErrNotGLB)
	}

	jsonLen := int(binary.LittleEndian.Uint32(raw[12:16]))
	jsonType := binary.LittleEndian.Uint32(raw[16:20])
	if jsonType != chunkTypeJSON {
		return nil, nil, fmt.Errorf("%w: first chunk type 0x%08X", ErrMalformedChunk, jsonType)
	}

	jsonEnd := glbHeaderSize + chunkHeaderLen + jsonLen
	if jsonEnd > len(raw) {
		return nil, nil, fmt.Errorf("%w: JSON chunk length %d exceeds file", ErrMalformedChunk, jsonLen)
	}
	return raw[glbHeaderSize+chunkHeaderLen : jsonEnd], raw[jsonEnd:], nil
}

// setBufferViewTargets fills in bufferView.target for index and attribute
// accessors so validators stop warning about unset targets.
func setBufferViewTargets(root map[string]any) {
	bufferViews, _ := root["bufferViews"].([]any)
	accessors, _ := root["accessors"].([]any)
	meshes, _ := root["meshes"].([]any)
	if bufferViews == nil || accessors == nil || meshes == nil {
		return
	}

	const (
		arrayBuffer        = 34962
		elementArrayBuffer = 34963
	)

	setTarget := func(accessorID any, target int) {
		id, ok := accessorID.(float64)
		if !ok || int(id) < 0 || int(id) >= len(accessors) {
			return
		}
		acc, ok := accessors[int(id)].(map[string]any)
		if !ok {
			return
		}
		bvID, ok := acc["bufferView"].(float64)
		if !ok || int(bvID) < 0 || int(bvID) >= len(bufferViews) {
			return
		}
		bv, ok := bufferViews[int(bvID)].(map[string]any)
		if !ok {
			return
		}
		if _, exists := bv["target"]; !exists {
			bv["target"] = target
		}
	}

	for _, m := range meshes {
		mesh, ok := m.(map[string]any)
		if !ok {
			continue
		}
		prims, _ := mesh["primitives"].([]any)
		for _, p := range prims {
			prim, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if indices, ok := prim["indices"]; ok {
				setTarget(indices, elementArrayBuffer)
			}
			if attributes, ok := prim["attributes"].(map[string]any); ok {
				for _, accessorID := range attributes {
					setTarget(accessorID, arrayBuffer)
				}
			}
		}
	}
}

// writeFileAtomic writes data to path via a temp file in the same
// directory, renaming into place only when the write fully succeeded.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".geoconv-*")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("placing output: %w", err)
	}
	return nil
}
