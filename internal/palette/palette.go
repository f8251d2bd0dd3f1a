// Package palette provides the attribute values targets are drawn from.
package palette

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

type colour struct {
	hex  string
	name string
}

var reactorColours = []colour{
	{"#FF0000", "red"},
	{"#00FF00", "green"},
	{"#0000FF", "blue"},
	{"#FFFF00", "yellow"},
	{"#FF00FF", "magenta"},
	{"#00FFFF", "cyan"},
	{"#FF8000", "orange"},
	{"#8000FF", "purple"},
	{"#FF0080", "pink"},
	{"#00FF80", "lime"},
}

// Default returns the ten reactor colours.
func Default() []string {
	out := make([]string, len(reactorColours))
	for i, c := range reactorColours {
		out[i] = c.hex
	}
	return out
}

// Name returns a short display name for a known colour, or the value itself.
func Name(value string) string {
	for _, c := range reactorColours {
		if strings.EqualFold(c.hex, value) {
			return c.name
		}
	}
	return value
}

// Load reads one #RRGGBB colour per line. Blank lines and lines starting with
// "//" are skipped; duplicates and malformed values are errors.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only palette.
			_ = cerr
		}
	}()

	var values []string
	seen := map[string]int{}
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		line = strings.ToUpper(line)
		if !IsHexColour(line) {
			return nil, fmt.Errorf("line %d: %q is not a #RRGGBB colour", lineNo, line)
		}
		if prev, ok := seen[line]; ok {
			return nil, fmt.Errorf("line %d: duplicate colour %s (first on line %d)", lineNo, line, prev)
		}
		seen[line] = lineNo
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("palette is empty")
	}
	return values, nil
}

// IsHexColour reports whether value looks like #RRGGBB.
func IsHexColour(value string) bool {
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for i := 1; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
