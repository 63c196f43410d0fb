// Package descriptor reads the descriptor.json record shipped with every
// model package and normalizes it into the core_descriptor metadata block.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Core is the normalized descriptor block embedded in the container
// metadata. Field names follow the published metadata layout.
type Core struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	Author              string `json:"author"`
	Source              string `json:"source"`
	DOI                 string `json:"doi"`
	License             string `json:"license"`
	CreationDatetime    string `json:"creation_datetime"`
	PublicationDatetime string `json:"publication_datetime"`
	MetaURL             string `json:"meta_url"`
}

// Parse decodes a descriptor.json payload. The source record uses a few
// space-separated keys ("creation datetime"), so decoding goes through a
// generic map rather than struct tags.
func Parse(data []byte) (*Core, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}

	str := func(key string) string {
		if v, ok := raw[key].(string); ok {
			return v
		}
		return ""
	}

	return &Core{
		Code:                str("code"),
		Name:                str("name"),
		Description:         str("description"),
		Author:              str("author"),
		Source:              str("source"),
		DOI:                 str("doi"),
		License:             str("license"),
		CreationDatetime:    str("creation datetime"),
		PublicationDatetime: str("publication datetime"),
		MetaURL:             str("meta_url"),
	}, nil
}

// Load reads descriptor.json from a model directory. The descriptor is a
// mandatory part of the delivery: a missing file is an error.
func Load(modelDir string) (*Core, error) {
	path := filepath.Join(modelDir, "descriptor.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	return Parse(data)
}
