// Package convert orchestrates the full package-to-container pipeline:
// extract the ZIP delivery, gather metadata, parse the surface files,
// assemble the scene, and write the GLB plus the external metadata copy.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/geoit3d/geoconv/internal/attrs"
	"github.com/geoit3d/geoconv/internal/descriptor"
	"github.com/geoit3d/geoconv/internal/glb"
	"github.com/geoit3d/geoconv/internal/isosheet"
	"github.com/geoit3d/geoconv/internal/logger"
	"github.com/geoit3d/geoconv/internal/palette"
	"github.com/geoit3d/geoconv/internal/scene"
	"github.com/geoit3d/geoconv/pkg/modelzip"
	"github.com/geoit3d/geoconv/pkg/tsurf"
)

// ErrNoGeometry is returned when no surface in the package carries any
// triangle: there is nothing to export.
var ErrNoGeometry = errors.New("package contains no triangulated geometry")

// Options controls a single conversion run.
type Options struct {
	ZipPath      string
	OutputDir    string
	ISOSheetPath string // optional .xlsx with the ISO/AGID sheet
	PaletteFile  string // palette CSV name inside the package; "" disables
	KeepTemp     bool
	CopyTables   bool
}

// Result describes a completed conversion.
type Result struct {
	GLBPath      string
	MetadataPath string
	GLBBytes     int64
	SurfaceCount int
	TempDir      string // set only when Options.KeepTemp
	Diagnostics  []string
}

// Extras is the metadata object embedded in asset.extras and written to
// the external metadata file.
type Extras struct {
	CoreDescriptor *descriptor.Core    `json:"core_descriptor"`
	ISOAgid        *isosheet.Metadata  `json:"iso_agid,omitempty"`
	Surfaces       []scene.SurfaceMeta `json:"surfaces"`
}

// surfaceFiles lists the per-category TSurf files of a delivery, in the
// fixed processing order.
var surfaceFiles = []struct {
	name     string
	category tsurf.Category
}{
	{"dem.ts", tsurf.CategoryDEM},
	{"horizons.ts", tsurf.CategoryHorizon},
	{"faults.ts", tsurf.CategoryFault},
	{"units.ts", tsurf.CategoryUnit},
}

// attributeFiles lists the attribute tables a delivery may carry.
var attributeFiles = []struct {
	name     string
	category tsurf.Category
	variant  attrs.Variant
}{
	{"main_fault_attributes.csv", tsurf.CategoryFault, attrs.VariantMain},
	{"main_fault_derived_attributes.csv", tsurf.CategoryFault, attrs.VariantDerived},
	{"main_fault_kinematics_attributes.csv", tsurf.CategoryFault, attrs.VariantKinematics},
	{"main_horizon_attributes.csv", tsurf.CategoryHorizon, attrs.VariantMain},
	{"main_horizon_derived_attributes.csv", tsurf.CategoryHorizon, attrs.VariantDerived},
	{"main_unit_attributes.csv", tsurf.CategoryUnit, attrs.VariantMain},
}

// Run converts one packaged model. Advisory conditions (dropped surfaces,
// attribute misses, unresolved colors) are logged and collected in the
// result; only missing mandatory inputs, a geometry-less package, or a
// container-write failure abort the run.
func Run(opts Options) (*Result, error) {
	log := logger.Log

	tmpDir, err := modelzip.ExtractToTemp(opts.ZipPath)
	if err != nil {
		return nil, fmt.Errorf("extracting package: %w", err)
	}
	if opts.KeepTemp {
		log.Info("keeping extraction directory", zap.String("dir", tmpDir))
	} else {
		defer os.RemoveAll(tmpDir)
	}

	core, err := descriptor.Load(tmpDir)
	if err != nil {
		return nil, err
	}
	log.Info("descriptor loaded", zap.String("code", core.Code), zap.String("name", core.Name))

	var iso *isosheet.Metadata
	if opts.ISOSheetPath != "" {
		iso, err = isosheet.ParseFile(opts.ISOSheetPath)
		if err != nil {
			return nil, err
		}
		log.Info("ISO/AGID sheet loaded", zap.String("identifier", iso.Identifier))
	}

	var diagnostics []string
	tables := loadAttributeTables(tmpDir, &diagnostics)
	scheme := loadPalette(tmpDir, opts.PaletteFile, &diagnostics)

	var surfaces []tsurf.Surface
	for _, sf := range surfaceFiles {
		path := filepath.Join(tmpDir, sf.name)
		if _, err := os.Stat(path); err != nil {
			// A whole category may be absent from the delivery.
			continue
		}
		parsed, diags, err := tsurf.ParseFile(path, sf.category)
		if err != nil {
			return nil, err
		}
		for _, d := range diags {
			log.Warn("surface discarded", zap.String("file", sf.name), zap.String("detail", d.String()))
			diagnostics = append(diagnostics, d.String())
		}
		log.Info("surface file parsed",
			zap.String("file", sf.name),
			zap.Int("surfaces", len(parsed)))
		surfaces = append(surfaces, parsed...)
	}

	graph, asmDiags := scene.Assemble(surfaces, tables, scheme)
	for _, d := range asmDiags {
		log.Warn("assembly", zap.String("detail", d.String()))
		diagnostics = append(diagnostics, d.String())
	}
	if graph.TriangleCount() == 0 {
		return nil, ErrNoGeometry
	}

	extras := &Extras{
		CoreDescriptor: core,
		ISOAgid:        iso,
		Surfaces:       graph.Meta,
	}

	base := strings.TrimSuffix(filepath.Base(opts.ZipPath), filepath.Ext(opts.ZipPath))
	glbPath := filepath.Join(opts.OutputDir, base+".glb")
	metaPath := filepath.Join(opts.OutputDir, base+"_metadata.json")

	written, err := glb.Write(graph, extras, core.Code, glbPath)
	if err != nil {
		return nil, err
	}
	log.Info("container written", zap.String("path", glbPath), zap.Int64("bytes", written))

	if err := writeMetadataFile(metaPath, extras); err != nil {
		return nil, err
	}

	if opts.CopyTables {
		copyAttributeTables(tmpDir, opts.OutputDir, &diagnostics)
	}

	result := &Result{
		GLBPath:      glbPath,
		MetadataPath: metaPath,
		GLBBytes:     written,
		SurfaceCount: len(graph.Nodes),
		Diagnostics:  diagnostics,
	}
	if opts.KeepTemp {
		result.TempDir = tmpDir
	}
	return result, nil
}

// loadAttributeTables merges the variant CSVs present in the model
// directory into one table per category. Table problems are advisory: a
// bad table leaves its category without attributes.
func loadAttributeTables(modelDir string, diagnostics *[]string) map[tsurf.Category]*attrs.Table {
	sources := make(map[tsurf.Category][]attrs.Source)
	for _, af := range attributeFiles {
		data, err := os.ReadFile(filepath.Join(modelDir, af.name))
		if err != nil {
			continue
		}
		sources[af.category] = append(sources[af.category], attrs.Source{
			Variant: af.variant,
			Data:    data,
		})
	}

	tables := make(map[tsurf.Category]*attrs.Table)
	for _, category := range []tsurf.Category{tsurf.CategoryFault, tsurf.CategoryHorizon, tsurf.CategoryUnit} {
		src := sources[category]
		if len(src) == 0 {
			continue
		}
		table, err := attrs.Merge("id", src)
		if err != nil {
			msg := fmt.Sprintf("attribute tables for %s skipped: %v", category, err)
			logger.Log.Warn("attribute tables", zap.String("detail", msg))
			*diagnostics = append(*diagnostics, msg)
			continue
		}
		tables[category] = table
	}
	return tables
}

// loadPalette loads the optional palette CSV from the model directory.
func loadPalette(modelDir, name string, diagnostics *[]string) *palette.Scheme {
	if name == "" {
		return nil
	}
	path := filepath.Join(modelDir, name)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	scheme, err := palette.ParseFile(path)
	if err != nil {
		msg := fmt.Sprintf("palette %s skipped: %v", name, err)
		logger.Log.Warn("palette", zap.String("detail", msg))
		*diagnostics = append(*diagnostics, msg)
		return nil
	}
	return scheme
}

// writeMetadataFile writes the external metadata copy as indented JSON,
// via a temp file so no partial file lands at the final path.
func writeMetadataFile(path string, extras *Extras) error {
	data, err := json.MarshalIndent(extras, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".geoconv-*")
	if err != nil {
		return fmt.Errorf("creating temp metadata file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing metadata: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("placing metadata: %w", err)
	}
	return nil
}

// copyAttributeTables copies the delivery's attribute CSVs next to the
// converted output, for consumers that do not parse the container.
func copyAttributeTables(modelDir, outputDir string, diagnostics *[]string) {
	for _, af := range attributeFiles {
		src := filepath.Join(modelDir, af.name)
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		dst := filepath.Join(outputDir, af.name)
		if err := os.WriteFile(dst, data, 0644); err != nil {
			msg := fmt.Sprintf("copying %s: %v", af.name, err)
			logger.Log.Warn("attribute tables", zap.String("detail", msg))
			*diagnostics = append(*diagnostics, msg)
		}
	}
}
