// SPDX-License-Identifier: MPL-2.0

package unit

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nativedeps/nativedeps/pkg/cueutil"

	"github.com/pelletier/go-toml/v2"
)

// DefaultCatalogName is the display name of the embedded catalog.
const DefaultCatalogName = "<builtin>/catalog.cue"

var (
	//go:embed catalog_schema.cue
	catalogSchema []byte

	//go:embed catalog.cue
	defaultCatalog []byte

	// ErrUnsupportedCatalogFormat is returned by Load for files that are
	// neither .cue nor .toml.
	ErrUnsupportedCatalogFormat = errors.New("unsupported catalog format")
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return ParseCUE(defaultCatalog, DefaultCatalogName)
}

// Load reads a catalog file, choosing the decoder by extension. An empty
// path returns the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapConfigErr("", "units_file", fmt.Errorf("read %s: %w", path, err))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(data, path)
	case ".toml":
		return ParseTOML(data, path)
	default:
		return nil, wrapConfigErr("", "units_file", fmt.Errorf("%w: %s (expected .cue or .toml)", ErrUnsupportedCatalogFormat, path))
	}
}

// ParseCUE decodes a CUE catalog, validating it against the embedded
// #Catalog schema and then against the Go-side structural rules.
func ParseCUE(data []byte, filename string) (*Catalog, error) {
	result, err := cueutil.ParseAndDecode[Catalog](catalogSchema, data, "#Catalog", cueutil.WithFilename(filename))
	if err != nil {
		return nil, wrapConfigErr("", "catalog", err)
	}
	if err := result.Value.Validate(); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// ParseTOML decodes a TOML catalog. Unknown keys are rejected so typos do
// not silently drop options.
func ParseTOML(data []byte, filename string) (*Catalog, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, wrapConfigErr("", "catalog", err)
	}

	var c Catalog
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, wrapConfigErr("", "catalog", fmt.Errorf("%s:%d:%d: %s", filename, row, col, derr.Error()))
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, wrapConfigErr("", "catalog", fmt.Errorf("%s: %s", filename, serr.String()))
		}
		return nil, wrapConfigErr("", "catalog", fmt.Errorf("%s: %w", filename, err))
	}
	for i := range c.Fixed {
		c.Fixed[i].Type = c.Fixed[i].Type.Normalize()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
