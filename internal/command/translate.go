package command

import (
	"fmt"
	"strings"

	"github.com/nerrad567/lightrelay/internal/color"
)

// TranslateColor converts the arguments of a color command into a packed
// color value. It has no side effects.
//
// Parameters:
//   - table: Color table to resolve against
//   - args: Command arguments, exactly one color name expected
//
// Returns:
//   - color.Packed: 24-bit value for the named color
//   - error: ErrArgumentCount or ErrUnknownColor
func TranslateColor(table *color.Table, args []string) (color.Packed, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: got %d, want 1", ErrArgumentCount, len(args))
	}

	name := strings.ToLower(args[0])
	rgb, ok := table.Resolve(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownColor, name)
	}
	return rgb.Pack(), nil
}
