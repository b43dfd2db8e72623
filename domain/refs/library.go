package refs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Library is the immutable set of reference patterns loaded at startup. It is
// safe for concurrent readers because nothing writes to it after Load.
type Library struct {
	byCategory map[Category][]Pattern
	sources    map[Category]string
}

// Load reads one reference file per category. Any missing or malformed file
// fails the whole load; no partial library is returned.
func Load(paths map[Category]string) (*Library, error) {
	lib := &Library{
		byCategory: make(map[Category][]Pattern, len(paths)),
		sources:    make(map[Category]string, len(paths)),
	}
	cats := make([]Category, 0, len(paths))
	for c := range paths {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	for _, c := range cats {
		path := paths[c]
		patterns, err := loadFile(path, c)
		if err != nil {
			return nil, err
		}
		lib.byCategory[c] = patterns
		lib.sources[c] = path
	}
	return lib, nil
}

// LoadDir loads every category in DefaultFiles from dir.
func LoadDir(dir string) (*Library, error) {
	paths := make(map[Category]string, len(DefaultFiles))
	for c, name := range DefaultFiles {
		paths[c] = filepath.Join(dir, name)
	}
	return Load(paths)
}

func loadFile(path string, c Category) ([]Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()
	return Decode(f, path, c)
}

// FromPatterns builds a library from in-memory patterns, keeping their order
// within each category.
func FromPatterns(patterns ...Pattern) (*Library, error) {
	lib := &Library{byCategory: map[Category][]Pattern{}, sources: map[Category]string{}}
	for _, p := range patterns {
		if p.Name == "" || p.Gray.W <= 0 || p.Gray.H <= 0 || len(p.Gray.Pix) != p.Gray.W*p.Gray.H {
			return nil, &LoadError{Path: "memory", Err: fmt.Errorf("%w: pattern %q in %s", ErrMalformed, p.Name, p.Category)}
		}
		for _, existing := range lib.byCategory[p.Category] {
			if existing.Name == p.Name {
				return nil, &LoadError{Path: "memory", Err: fmt.Errorf("%w: duplicate name %q in %s", ErrMalformed, p.Name, p.Category)}
			}
		}
		lib.byCategory[p.Category] = append(lib.byCategory[p.Category], p)
	}
	return lib, nil
}

// PatternsFor returns the patterns of c in file order. Callers must not
// modify the returned slice.
func (l *Library) PatternsFor(c Category) []Pattern {
	if l == nil {
		return nil
	}
	return l.byCategory[c]
}

// Named returns the patterns of c whose name is one of names, in file order.
func (l *Library) Named(c Category, names ...string) []Pattern {
	var out []Pattern
	for _, p := range l.PatternsFor(c) {
		if slices.Contains(names, p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of patterns in c.
func (l *Library) Len(c Category) int { return len(l.PatternsFor(c)) }

// Categories lists the loaded categories in sorted order.
func (l *Library) Categories() []Category {
	if l == nil {
		return nil
	}
	out := make([]Category, 0, len(l.byCategory))
	for c := range l.byCategory {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Source returns the file a category was loaded from, if any.
func (l *Library) Source(c Category) string {
	if l == nil {
		return ""
	}
	return l.sources[c]
}
