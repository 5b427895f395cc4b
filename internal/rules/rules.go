// Package rules assigns materials, displacement and subdivision to objects
// by name.
//
// A rule file lists pattern rules:
//
//	<materialAssignmentRules>
//	  <patternRule>
//	    <pattern>fx_*</pattern>
//	    <material>smokeMtl</material>
//	    <displacement amount="2.5">noiseTex</displacement>
//	    <subdivision>1</subdivision>
//	  </patternRule>
//	</materialAssignmentRules>
//
// Every pattern of a rule yields one entry per present sub-tag. Lookups scan
// each table in file order and the first matching pattern wins.
package rules

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Faultbox/geomcache/internal/render"
)

// DefaultDisplacementAmount is used when a displacement has no amount.
const DefaultDisplacementAmount = 1.0

// MaterialRule binds objects matching Pattern to a material.
type MaterialRule struct {
	Pattern string
	Name    string
	// Plugin is nil when Name was not found in the scene.
	Plugin render.Plugin
	match  glob.Glob
}

// DisplacementRule binds objects matching Pattern to a displacement texture.
type DisplacementRule struct {
	Pattern string
	Texture string
	Amount  float32
	Plugin  render.Plugin
	match   glob.Glob
}

// SubdivisionRule turns subdivision on or off for objects matching Pattern.
type SubdivisionRule struct {
	Pattern string
	Enabled bool
	match   glob.Glob
}

// Table holds the rules loaded from one file. A nil Table has no rules.
type Table struct {
	Materials     []MaterialRule
	Displacements []DisplacementRule
	Subdivisions  []SubdivisionRule
}

type xmlRules struct {
	XMLName xml.Name         `xml:"materialAssignmentRules"`
	Rules   []xmlPatternRule `xml:"patternRule"`
}

type xmlPatternRule struct {
	Material     *string          `xml:"material"`
	Displacement *xmlDisplacement `xml:"displacement"`
	Subdivision  *string          `xml:"subdivision"`
	Patterns     []string         `xml:"pattern"`
}

type xmlDisplacement struct {
	Texture string  `xml:",chardata"`
	Amount  *string `xml:"amount,attr"`
}

// LoadFile reads the rule file at path. See Load.
func LoadFile(path string, scene render.Scene, prefix string, progress render.Progress) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules: %w", err)
	}
	defer f.Close()

	return Load(f, scene, prefix, progress)
}

// Load parses a rule file and resolves every material and texture name,
// with prefix prepended, against scene. Names that cannot be resolved are
// reported through progress and keep a nil plugin.
func Load(r io.Reader, scene render.Scene, prefix string, progress render.Progress) (*Table, error) {
	var doc xmlRules
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	t := &Table{}
	for _, pr := range doc.Rules {
		var (
			material string
			texture  string
			amount   float32
			enabled  bool
		)
		if pr.Material != nil {
			material = strings.TrimSpace(*pr.Material)
		}
		if d := pr.Displacement; d != nil {
			texture = strings.TrimSpace(d.Texture)
			amount = parseAmount(d.Amount, progress)
		}
		if pr.Subdivision != nil {
			enabled = parseFlag(*pr.Subdivision, progress)
		}

		for _, raw := range pr.Patterns {
			pattern := strings.TrimSpace(raw)
			match, err := compile(pattern)
			if err != nil {
				warnf(progress, "Invalid pattern %q: %v", pattern, err)
				continue
			}

			if pr.Material != nil {
				t.Materials = append(t.Materials, MaterialRule{Pattern: pattern, Name: material, match: match})
			}
			if pr.Displacement != nil {
				t.Displacements = append(t.Displacements, DisplacementRule{
					Pattern: pattern,
					Texture: texture,
					Amount:  amount,
					match:   match,
				})
			}
			if pr.Subdivision != nil {
				t.Subdivisions = append(t.Subdivisions, SubdivisionRule{Pattern: pattern, Enabled: enabled, match: match})
			}
		}
	}

	for i := range t.Materials {
		rule := &t.Materials[i]
		rule.Plugin = find(scene, prefix+rule.Name)
		if rule.Plugin == nil {
			warnf(progress, "Cannot find material %q", rule.Name)
		}
	}
	for i := range t.Displacements {
		rule := &t.Displacements[i]
		rule.Plugin = find(scene, prefix+rule.Texture)
		if rule.Plugin == nil {
			warnf(progress, "Cannot find displacement texture %q", rule.Texture)
		}
	}
	return t, nil
}

// Len returns the total number of entries across all tables.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Materials) + len(t.Displacements) + len(t.Subdivisions)
}

// Material returns the material of the first rule matching name. It is nil
// when no rule matches or the matching rule's material was not found; the
// caller then uses its default material.
func (t *Table) Material(name string) render.Plugin {
	if t == nil || name == "" {
		return nil
	}
	for _, rule := range t.Materials {
		if rule.match != nil && rule.match.Match(name) {
			return rule.Plugin
		}
	}
	return nil
}

// Displacement returns the displacement texture and amount of the first
// rule matching name. ok is false when there is no usable texture.
func (t *Table) Displacement(name string) (tex render.Plugin, amount float32, ok bool) {
	if t == nil || name == "" {
		return nil, 0, false
	}
	for _, rule := range t.Displacements {
		if rule.match != nil && rule.match.Match(name) {
			if rule.Plugin == nil {
				return nil, 0, false
			}
			return rule.Plugin, rule.Amount, true
		}
	}
	return nil, 0, false
}

// SubdivisionEnabled reports whether the first rule matching name turns
// subdivision on. Unmatched names are not subdivided.
func (t *Table) SubdivisionEnabled(name string) bool {
	if t == nil || name == "" {
		return false
	}
	for _, rule := range t.Subdivisions {
		if rule.match != nil && rule.match.Match(name) {
			return rule.Enabled
		}
	}
	return false
}

// compile builds a matcher supporting only * and ?. Other glob syntax is
// matched literally. An empty pattern yields a nil matcher that never
// matches.
func compile(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return glob.Compile(b.String())
}

func parseAmount(s *string, progress render.Progress) float32 {
	if s == nil {
		return DefaultDisplacementAmount
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 32)
	if err != nil {
		warnf(progress, "Invalid displacement amount %q, using %v", *s, DefaultDisplacementAmount)
		return DefaultDisplacementAmount
	}
	return float32(v)
}

func parseFlag(s string, progress render.Progress) bool {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		warnf(progress, "Invalid subdivision value %q", s)
		return false
	}
	return v != 0
}

func find(scene render.Scene, name string) render.Plugin {
	if scene == nil {
		return nil
	}
	return scene.FindPlugin(name)
}

func warnf(progress render.Progress, format string, args ...any) {
	if progress != nil {
		progress.Warnf(format, args...)
	}
}
