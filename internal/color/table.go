package color

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidName is returned when a table entry has an empty name.
	ErrInvalidName = errors.New("color: invalid name")

	// ErrDuplicateName is returned when two table entries share a name.
	ErrDuplicateName = errors.New("color: duplicate name")
)

// RGB is a color with three 8-bit channels.
type RGB struct {
	Red   uint8 `json:"red" yaml:"red"`
	Green uint8 `json:"green" yaml:"green"`
	Blue  uint8 `json:"blue" yaml:"blue"`
}

// Packed is a 24-bit color value with red in bits 16-23, green in bits 8-15
// and blue in bits 0-7. This is the form the lighting protocol consumes.
type Packed uint32

// Pack encodes the color as a Packed value.
func (c RGB) Pack() Packed {
	return Packed(uint32(c.Red)<<16 | uint32(c.Green)<<8 | uint32(c.Blue))
}

// String returns the color as a hex triplet, e.g. "#FF0000".
func (c RGB) String() string {
	return fmt.Sprintf("#%02X%02X%02X", c.Red, c.Green, c.Blue)
}

// RGB decodes a packed value back into its channels.
func (p Packed) RGB() RGB {
	return RGB{
		Red:   uint8(p >> 16), //nolint:gosec // truncation to the channel byte is intended
		Green: uint8(p >> 8),  //nolint:gosec // truncation to the channel byte is intended
		Blue:  uint8(p),       //nolint:gosec // truncation to the channel byte is intended
	}
}

// Entry is a single named color used to build a Table.
type Entry struct {
	Name  string
	Color RGB
}

// Listing is one line of the numbered color listing.
type Listing struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Table is an immutable mapping from canonical lowercase name to color.
// Enumeration follows insertion order.
type Table struct {
	names  []string
	colors map[string]RGB
}

// defaultEntries are the colors every table starts from.
var defaultEntries = []Entry{
	{Name: "white", Color: RGB{Red: 255, Green: 255, Blue: 255}},
	{Name: "red", Color: RGB{Red: 255, Green: 0, Blue: 0}},
	{Name: "green", Color: RGB{Red: 0, Green: 255, Blue: 0}},
	{Name: "blue", Color: RGB{Red: 0, Green: 0, Blue: 255}},
	{Name: "yellow", Color: RGB{Red: 255, Green: 255, Blue: 0}},
	{Name: "magenta", Color: RGB{Red: 255, Green: 0, Blue: 255}},
	{Name: "cyan", Color: RGB{Red: 0, Green: 255, Blue: 255}},
}

// Default returns the built-in seven color table.
func Default() *Table {
	t, err := NewTable(defaultEntries...)
	if err != nil {
		panic(err) // static entries
	}
	return t
}

// WithDefaults builds a table holding the built-in colors followed by extra.
func WithDefaults(extra ...Entry) (*Table, error) {
	entries := make([]Entry, 0, len(defaultEntries)+len(extra))
	entries = append(entries, defaultEntries...)
	entries = append(entries, extra...)
	return NewTable(entries...)
}

// NewTable builds a table from entries. Names are trimmed and lowercased.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{
		names:  make([]string, 0, len(entries)),
		colors: make(map[string]RGB, len(entries)),
	}

	for i, e := range entries {
		name := canonical(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidName, i)
		}
		if _, exists := t.colors[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		t.names = append(t.names, name)
		t.colors[name] = e.Color
	}

	return t, nil
}

// Resolve looks a color up by name, ignoring case.
func (t *Table) Resolve(name string) (RGB, bool) {
	c, ok := t.colors[canonical(name)]
	return c, ok
}

// Enumerate returns the 1-based numbered listing of every name.
func (t *Table) Enumerate() []Listing {
	out := make([]Listing, len(t.names))
	for i, name := range t.names {
		out[i] = Listing{Index: i + 1, Name: name}
	}
	return out
}

// Len returns the number of colors in the table.
func (t *Table) Len() int {
	return len(t.names)
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
