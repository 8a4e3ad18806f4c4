package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"unicode/utf8"

	"github.com/soocke/bbox-annotator/domain/annotation"
	"github.com/soocke/bbox-annotator/domain/session"
)

// ErrInvalidConfig is returned when a configuration cannot drive a session.
var ErrInvalidConfig = errors.New("invalid config")

// RGB is a colour stored as a three element JSON array.
type RGB [3]uint8

// RGBA converts to an opaque color.RGBA.
func (c RGB) RGBA() color.RGBA { return color.RGBA{c[0], c[1], c[2], 255} }

// ClassConfig names one annotation class and its display colour.
type ClassConfig struct {
	Name   string `json:"name"`
	Colour RGB    `json:"colour"`
}

// Config holds runtime configuration for the annotator.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Inputs and outputs
	ImageDir           string `json:"image_dir"`
	LabelDir           string `json:"label_dir"`
	ManifestDir        string `json:"manifest_dir"`
	ManifestImageField string `json:"manifest_image_field"`
	FilteredDir        string `json:"filtered_dir"`
	LabelExt           string `json:"label_ext"`

	// Display
	MaxDisplayWidth  int `json:"max_display_width"`
	MaxDisplayHeight int `json:"max_display_height"`
	DefaultColour    RGB `json:"default_colour"`
	LineThickness    int `json:"line_thickness"`
	MinBoxSize       int `json:"min_box_size"`

	// Classes and hotkeys
	UseClasses      bool              `json:"use_classes"`
	Classes         []ClassConfig     `json:"classes"`
	ClassShortcuts  map[string]string `json:"class_shortcuts"`
	ReservedHotkeys []string          `json:"reserved_hotkeys"`

	StartFrom int `json:"start_from"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:              false,
		ImageDir:           "images",
		LabelDir:           "labels",
		ManifestImageField: "imageNew",
		LabelExt:           ".npy",
		MaxDisplayWidth:    1500,
		MaxDisplayHeight:   900,
		DefaultColour:      RGB{255, 255, 255},
		LineThickness:      2,
		MinBoxSize:         5,
		UseClasses:         false,
		Classes: []ClassConfig{
			{Name: "Container", Colour: RGB{255, 100, 0}},
			{Name: "Damage", Colour: RGB{255, 0, 0}},
		},
		ClassShortcuts:  map[string]string{"c": "Container", "x": "Damage"},
		ReservedHotkeys: []string{"n", "p", "d", "s", "q"},
		StartFrom:       0,
	}
}

// Validate normalizes numeric values to safe ranges and rejects class or
// hotkey tables that cannot drive a session.
func (c *Config) Validate() error {
	if c.MaxDisplayWidth <= 0 {
		c.MaxDisplayWidth = 1500
	}
	if c.MaxDisplayHeight <= 0 {
		c.MaxDisplayHeight = 900
	}
	if c.LineThickness <= 0 {
		c.LineThickness = 2
	}
	if c.MinBoxSize < 0 {
		c.MinBoxSize = 5
	}
	if c.StartFrom < 0 {
		c.StartFrom = 0
	}
	if c.LabelExt == "" {
		c.LabelExt = ".npy"
	}
	if c.ManifestImageField == "" {
		c.ManifestImageField = "imageNew"
	}
	if _, err := c.ClassTable(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Shortcuts(); err != nil {
		return err
	}
	return nil
}

// ClassTable builds the ordered class table from Classes.
func (c *Config) ClassTable() (*annotation.ClassTable, error) {
	if len(c.Classes) == 0 {
		return nil, fmt.Errorf("%w: empty class table", annotation.ErrInvalidClass)
	}
	classes := make([]annotation.Class, 0, len(c.Classes))
	for _, cc := range c.Classes {
		classes = append(classes, annotation.Class{Name: cc.Name, Color: cc.Colour.RGBA()})
	}
	return annotation.NewClassTable(classes)
}

// Reserved returns the command keys plus any extra reserved hotkeys as runes.
func (c *Config) Reserved() map[rune]bool {
	out := session.ReservedKeys()
	for _, k := range c.ReservedHotkeys {
		if r, size := utf8.DecodeRuneInString(k); size == len(k) && size > 0 {
			out[r] = true
		}
	}
	return out
}

// Shortcuts resolves ClassShortcuts into a rune keyed map. A shortcut that is
// not a single character, collides with a reserved hotkey or names an unknown
// class is an error.
func (c *Config) Shortcuts() (map[rune]string, error) {
	reserved := c.Reserved()
	names := make(map[string]bool, len(c.Classes))
	for _, cc := range c.Classes {
		names[cc.Name] = true
	}
	out := make(map[rune]string, len(c.ClassShortcuts))
	for key, name := range c.ClassShortcuts {
		r, size := utf8.DecodeRuneInString(key)
		if size == 0 || size != len(key) {
			return nil, fmt.Errorf("%w: shortcut %q must be a single character", ErrInvalidConfig, key)
		}
		if reserved[r] {
			return nil, fmt.Errorf("%w: shortcut %q is a reserved hotkey", ErrInvalidConfig, key)
		}
		if !names[name] {
			return nil, fmt.Errorf("%w: shortcut %q names unknown class %q", ErrInvalidConfig, key, name)
		}
		out[r] = name
	}
	return out, nil
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON or validation error it returns the config with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}
	// json merges into the default shortcut map; a file that names its
	// shortcuts replaces them outright.
	var probe struct {
		ClassShortcuts map[string]string `json:"class_shortcuts"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.ClassShortcuts != nil {
		cfg.ClassShortcuts = probe.ClassShortcuts
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
