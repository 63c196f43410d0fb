// geoconv is a CLI utility for converting packaged geological 3D models
// into GLB containers with embedded provenance metadata.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/geoit3d/geoconv/internal/config"
	"github.com/geoit3d/geoconv/internal/convert"
	"github.com/geoit3d/geoconv/internal/logger"
	"github.com/geoit3d/geoconv/pkg/modelzip"
	"github.com/geoit3d/geoconv/pkg/tsurf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "convert":
		cmdConvert(args)
	case "inspect":
		cmdInspect(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`geoconv - geological model package to GLB converter

Usage:
  geoconv <command> [options]

Commands:
  convert <model.zip> -o <dir>   Convert a model package to GLB + metadata
  inspect <model.zip>            List the surfaces a package contains

Options for convert:
  -o <dir>          Output directory (default from config)
  -iso-sheet <f>    ISO/AGID metadata sheet (.xlsx)
  -keep-temp        Keep the extraction directory for debugging
  -config <f>       Config file path
  -debug            Enable debug logging

Examples:
  geoconv convert F184_Mirandola.zip -o output/F184_Mirandola
  geoconv convert F184_Mirandola.zip -o out -iso-sheet Metadata_ISO_F184.xlsx
  geoconv inspect F184_Mirandola.zip`)
}

func cmdConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	outputDir := fs.String("o", "", "Output directory")
	isoSheet := fs.String("iso-sheet", "", "ISO/AGID metadata sheet (.xlsx)")
	keepTemp := fs.Bool("keep-temp", false, "Keep the extraction directory")
	configPath := fs.String("config", "", "Config file path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: geoconv convert <model.zip> -o <dir>")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *keepTemp {
		cfg.Convert.KeepTemp = true
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	result, err := convert.Run(convert.Options{
		ZipPath:      fs.Arg(0),
		OutputDir:    cfg.Output.Dir,
		ISOSheetPath: *isoSheet,
		PaletteFile:  cfg.Convert.PaletteFile,
		KeepTemp:     cfg.Convert.KeepTemp,
		CopyTables:   cfg.Convert.CopyTables,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %d surfaces (%d diagnostics)\n", result.SurfaceCount, len(result.Diagnostics))
	fmt.Printf("  GLB:      %s (%d bytes)\n", result.GLBPath, result.GLBBytes)
	fmt.Printf("  Metadata: %s\n", result.MetadataPath)
	if result.TempDir != "" {
		fmt.Printf("  Temp dir: %s\n", result.TempDir)
	}
}

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: geoconv inspect <model.zip>")
		os.Exit(1)
	}

	archive, err := modelzip.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	surfaceFiles := []struct {
		name     string
		category tsurf.Category
	}{
		{"dem.ts", tsurf.CategoryDEM},
		{"horizons.ts", tsurf.CategoryHorizon},
		{"faults.ts", tsurf.CategoryFault},
		{"units.ts", tsurf.CategoryUnit},
	}

	total := 0
	for _, sf := range surfaceFiles {
		if !archive.Contains(sf.name) {
			continue
		}
		data, err := archive.Read(sf.name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", sf.name, err)
			continue
		}

		surfaces, diags := tsurf.Parse(data, sf.category)
		for _, s := range surfaces {
			fmt.Printf("%-8s %-20s %7d vertices %7d triangles\n",
				s.Category, s.ID, len(s.Vertices), len(s.Triangles))
			total++
		}
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "warning: %s\n", d)
		}
	}

	if total == 0 {
		files := archive.List()
		fmt.Fprintf(os.Stderr, "No surfaces found (%d files in package: %s)\n",
			len(files), strings.Join(files, ", "))
		os.Exit(1)
	}
	fmt.Printf("\n%d surfaces\n", total)
}
