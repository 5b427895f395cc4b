// Package matdefs merges material definition files into the live scene.
//
// A definition file lists plugins with their parameters, in YAML or TOML:
//
//	plugins:
//	  - type: BRDFDiffuse
//	    name: red
//	    params:
//	      color: [1, 0, 0]
//	  - type: MtlSingleBRDF
//	    name: redMtl
//	    params:
//	      brdf: "@red"
//
// Every plugin name is prefixed with "<path>_" so several files can be
// loaded into one scene. String values starting with "@" reference another
// plugin of the same file. Plugins whose type starts with one of the
// IgnoredTypePrefixes are skipped.
package matdefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/internal/render"
)

// Errors
var (
	ErrUnsupportedFormat = errors.New("unsupported material definitions format")
	ErrPluginExists      = errors.New("plugin already exists")
	ErrInvalidPlugin     = errors.New("invalid plugin definition")
)

// IgnoredTypePrefixes lists plugin type prefixes that are not materials:
// render settings, geometry, cameras, nodes and lights.
var IgnoredTypePrefixes = []string{
	"Settings",
	"Geom",
	"RenderView",
	"Camera",
	"Node",
	"Light",
	"Sun",
}

// RefPrefix marks a string value as a plugin reference.
const RefPrefix = "@"

// Format is a definition file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// File is a parsed definition file.
type File struct {
	Plugins []PluginDef `yaml:"plugins" toml:"plugins"`
}

// PluginDef defines one plugin.
type PluginDef struct {
	Type   string         `yaml:"type" toml:"type"`
	Name   string         `yaml:"name" toml:"name"`
	Params map[string]any `yaml:"params" toml:"params"`
}

// Ignored reports whether the plugin type is filtered out.
func (d PluginDef) Ignored() bool {
	for _, prefix := range IgnoredTypePrefixes {
		if strings.HasPrefix(d.Type, prefix) {
			return true
		}
	}
	return false
}

// Parse decodes a definition file.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("parsing material definitions: %w", err)
	}
	return &f, nil
}

// ReadFile reads and decodes the definition file at path.
func ReadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading material definitions: %w", err)
	}
	return Parse(data, format)
}

// Prefix returns the name prefix used for plugins of the file at path.
func Prefix(path string) string {
	return path + "_"
}

// Load reads the file at path and creates its plugins through arena. It
// returns the prefix to look material names up with. On failure nothing is
// created and the prefix is empty, so lookups fall back to the scene.
func Load(path string, arena *render.Arena, scene render.Scene, progress render.Progress) (string, error) {
	f, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	prefix := Prefix(path)
	if err := f.Create(arena, scene, prefix, progress); err != nil {
		return "", err
	}
	return prefix, nil
}

// Create validates every definition, then creates the plugins with prefixed
// names and attaches their parameters. On failure nothing is left behind:
// plugins already created for this file are released from arena.
func (f *File) Create(arena *render.Arena, scene render.Scene, prefix string, progress render.Progress) error {
	log := logger.Named("matdefs")

	var defs []PluginDef
	seen := make(map[string]bool)
	for i, def := range f.Plugins {
		if def.Ignored() {
			log.Debug("skipping plugin", zap.String("type", def.Type), zap.String("name", def.Name))
			continue
		}
		if def.Type == "" || def.Name == "" {
			return fmt.Errorf("%w: plugin %d needs a type and a name", ErrInvalidPlugin, i)
		}
		name := prefix + def.Name
		if seen[name] || (scene != nil && scene.FindPlugin(name) != nil) {
			return fmt.Errorf("%w: %q", ErrPluginExists, name)
		}
		seen[name] = true
		defs = append(defs, def)
	}

	created := make(map[string]render.Plugin, len(defs))
	plugins := make([]render.Plugin, len(defs))
	mark := arena.Len()
	for i, def := range defs {
		p, err := arena.New(def.Type, prefix+def.Name)
		if err != nil {
			return multierr.Append(err, arena.ReleaseFrom(mark))
		}
		created[def.Name] = p
		plugins[i] = p
	}

	for i, def := range defs {
		for key, value := range def.Params {
			param, err := convert(key, value, created)
			if err != nil {
				warnf(progress, "Plugin %q parameter %q: %v", def.Name, key, err)
				continue
			}
			plugins[i].SetParameter(param)
		}
	}

	log.Debug("created material definitions", zap.String("prefix", prefix), zap.Int("plugins", len(defs)))
	return nil
}

// convert maps a decoded value onto a renderer parameter. YAML and TOML
// decode numbers to different Go types, so both are accepted.
func convert(name string, value any, plugins map[string]render.Plugin) (render.Param, error) {
	switch v := value.(type) {
	case bool:
		return render.NewBool(name, v), nil
	case string:
		if ref, ok := strings.CutPrefix(v, RefPrefix); ok {
			p := plugins[ref]
			if p == nil {
				return nil, fmt.Errorf("unknown plugin reference %q", ref)
			}
			return render.NewPluginRef(name, p), nil
		}
		return render.NewString(name, v), nil
	case []any:
		if len(v) != 3 {
			return nil, fmt.Errorf("lists must be colors of 3 components, got %d", len(v))
		}
		var c [3]float32
		for i, x := range v {
			f, ok := number(x)
			if !ok {
				return nil, fmt.Errorf("color component %d is %T", i, x)
			}
			c[i] = f
		}
		return render.NewColor(name, c[0], c[1], c[2]), nil
	}
	if f, ok := number(value); ok {
		return render.NewFloat(name, f), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", value)
}

func number(v any) (float32, bool) {
	switch n := v.(type) {
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	case float64:
		return float32(n), true
	}
	return 0, false
}

func warnf(progress render.Progress, format string, args ...any) {
	if progress != nil {
		progress.Warnf(format, args...)
	}
}
