package refs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// separator splits the pattern name from its array literal.
const separator = "::"

// ParseLine decodes one `<name>::<nested-list>` line. Rows of pixels
// ([[[r,g,b],...],...]) are condensed to their first channel.
func ParseLine(line string) (string, Gray, error) {
	name, literal, ok := strings.Cut(line, separator)
	if !ok {
		return "", Gray{}, fmt.Errorf("%w: missing %q separator", ErrMalformed, separator)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Gray{}, fmt.Errorf("%w: empty name", ErrMalformed)
	}
	g, err := parseArray(literal)
	if err != nil {
		return "", Gray{}, err
	}
	return name, g, nil
}

func parseArray(literal string) (Gray, error) {
	dec := json.NewDecoder(strings.NewReader(literal))
	dec.UseNumber()
	var rows []any
	if err := dec.Decode(&rows); err != nil {
		return Gray{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return Gray{}, fmt.Errorf("%w: trailing data after array", ErrMalformed)
	}
	if len(rows) == 0 {
		return Gray{}, fmt.Errorf("%w: empty array", ErrMalformed)
	}
	var g Gray
	for y, rv := range rows {
		row, ok := rv.([]any)
		if !ok {
			return Gray{}, fmt.Errorf("%w: row %d is not a list", ErrMalformed, y)
		}
		if y == 0 {
			if len(row) == 0 {
				return Gray{}, fmt.Errorf("%w: empty row", ErrMalformed)
			}
			g = NewGray(len(row), len(rows))
		} else if len(row) != g.W {
			return Gray{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformed, y, len(row), g.W)
		}
		for x, cell := range row {
			v, err := sample(cell)
			if err != nil {
				return Gray{}, fmt.Errorf("%w: row %d column %d: %v", ErrMalformed, y, x, err)
			}
			g.Set(x, y, v)
		}
	}
	return g, nil
}

// sample reads a scalar, or the first channel of a pixel list.
func sample(cell any) (uint8, error) {
	if px, ok := cell.([]any); ok {
		if len(px) == 0 {
			return 0, fmt.Errorf("empty pixel")
		}
		for _, ch := range px {
			if _, isList := ch.([]any); isList {
				return 0, fmt.Errorf("array nested too deep")
			}
		}
		return scalar(px[0])
	}
	return scalar(cell)
}

func scalar(v any) (uint8, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("non-numeric token %v", v)
	}
	n, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, fmt.Errorf("non-integer token %s", num)
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("sample %d out of range", n)
	}
	return uint8(n), nil
}

// FormatLine encodes g the way ParseLine reads it, without a trailing newline.
func FormatLine(name string, g Gray) string {
	var b bytes.Buffer
	b.Grow(len(name) + len(separator) + g.W*g.H*4 + 2*g.H + 2)
	b.WriteString(name)
	b.WriteString(separator)
	b.WriteByte('[')
	for y := 0; y < g.H; y++ {
		if y > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('[')
		for x := 0; x < g.W; x++ {
			if x > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Itoa(int(g.At(x, y))))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	return b.String()
}

// Encode writes one reference line for name to w.
func Encode(w io.Writer, name string, g Gray) error {
	if strings.Contains(name, separator) || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: invalid name %q", ErrMalformed, name)
	}
	_, err := io.WriteString(w, FormatLine(name, g)+"\n")
	return err
}

// Decode reads every pattern in r. Blank lines are skipped; the first
// malformed line aborts with a *LoadError naming path and line.
func Decode(r io.Reader, path string, category Category) ([]Pattern, error) {
	br := bufio.NewReader(r)
	var out []Pattern
	seen := map[string]int{}
	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, &LoadError{Path: path, Line: lineNo, Err: readErr}
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			name, g, err := ParseLine(line)
			if err != nil {
				return nil, &LoadError{Path: path, Line: lineNo, Err: err}
			}
			if first, dup := seen[name]; dup {
				return nil, &LoadError{Path: path, Line: lineNo, Err: fmt.Errorf("%w: duplicate name %q (first on line %d)", ErrMalformed, name, first)}
			}
			seen[name] = lineNo
			out = append(out, Pattern{Name: name, Category: category, Gray: g})
		}
		if readErr == io.EOF {
			return out, nil
		}
	}
}
