// Package catalog loads the label-pattern and field-mapping configuration
// files. Both are read once at startup and are immutable afterwards.
package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// Defaults applied when a mapping entry omits overlay placement details.
	DefaultOffsetX  = 10.0
	DefaultOffsetY  = 0.0
	DefaultFontSize = 11.0
)

// LoadError indicates a malformed or unreadable configuration file.
// It is fatal at startup and is never produced per-request.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load catalog file %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Offset is the displacement from an anchor's bounding box to the overlay
// insertion point, in points.
type Offset struct {
	DX float64 `mapstructure:"dx"`
	DY float64 `mapstructure:"dy"`
}

// WriteSpec describes how a field's value is drawn when it has to be
// overlaid instead of written into a form field.
type WriteSpec struct {
	AnchorLabel string  `mapstructure:"anchor_label"`
	Offset      Offset  `mapstructure:"offset"`
	FontSize    float64 `mapstructure:"font_size"`
}

// Field maps one canonical field key to its AcroForm candidates and its
// overlay write spec.
type Field struct {
	Key       string    `mapstructure:"key"`
	AcroNames []string  `mapstructure:"acroform_names"`
	Write     WriteSpec `mapstructure:"write"`
}

// Catalog is the combined pattern catalog and field mapping.
type Catalog struct {
	labels map[string][]string
	fields []Field
	byKey  map[string]int
}

// Load reads the patterns and mapping files. Any structural problem in
// either file fails the load; the caller is expected to treat that as a
// startup failure.
func Load(patternsPath, mappingPath string) (*Catalog, error) {
	labels, err := loadLabels(patternsPath)
	if err != nil {
		return nil, err
	}

	fields, err := loadFields(mappingPath)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		labels: labels,
		fields: fields,
		byKey:  make(map[string]int, len(fields)),
	}

	for i, f := range fields {
		if f.Key == "" {
			return nil, &LoadError{Path: mappingPath, Err: fmt.Errorf("field entry %d has no key", i)}
		}
		if _, dup := c.byKey[f.Key]; dup {
			return nil, &LoadError{Path: mappingPath, Err: fmt.Errorf("duplicate field key %q", f.Key)}
		}
		c.byKey[f.Key] = i

		anchor := f.Write.AnchorLabel
		if anchor == "" {
			anchor = f.Key
			c.fields[i].Write.AnchorLabel = anchor
		}
		if _, ok := labels[anchor]; !ok {
			return nil, &LoadError{
				Path: mappingPath,
				Err:  fmt.Errorf("field %q references unknown anchor label %q", f.Key, anchor),
			}
		}
		if c.fields[i].Write.FontSize <= 0 {
			c.fields[i].Write.FontSize = DefaultFontSize
		}
		if c.fields[i].Write.Offset == (Offset{}) {
			c.fields[i].Write.Offset = Offset{DX: DefaultOffsetX, DY: DefaultOffsetY}
		}
	}

	return c, nil
}

func loadLabels(path string) (map[string][]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var labels map[string][]string
	if err := v.UnmarshalKey("labels", &labels); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(labels) == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("no labels defined")}
	}

	for key, variants := range labels {
		if len(variants) == 0 {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("label %q has no variants", key)}
		}
		for i, variant := range variants {
			if strings.TrimSpace(variant) == "" {
				return nil, &LoadError{Path: path, Err: fmt.Errorf("label %q variant %d is blank", key, i)}
			}
		}
	}

	return labels, nil
}

func loadFields(path string) ([]Field, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var fields []Field
	if err := v.UnmarshalKey("fields", &fields); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(fields) == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("no fields defined")}
	}

	return fields, nil
}

// Field returns the mapping entry for a canonical key.
func (c *Catalog) Field(key string) (Field, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Field{}, false
	}
	return c.fields[i], true
}

// Fields returns all mapping entries in file order.
func (c *Catalog) Fields() []Field {
	return c.fields
}

// Keys returns the canonical field keys in mapping file order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.fields))
	for i, f := range c.fields {
		keys[i] = f.Key
	}
	return keys
}

// Knows reports whether key is a known canonical field.
func (c *Catalog) Knows(key string) bool {
	_, ok := c.byKey[key]
	return ok
}

// Variants returns the label variants for an anchor label key.
func (c *Catalog) Variants(label string) []string {
	return c.labels[label]
}
