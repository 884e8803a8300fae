// Package finder lists the Markdown files of a directory tree.
package finder

import (
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// DefaultExcludes are path fragments that are never scanned. Matching is
	// case-insensitive and anywhere in the path.
	DefaultExcludes = []string{".git", "node_modules", ".venv"}

	// DefaultExtensions are the recognized Markdown file extensions.
	DefaultExtensions = []string{".md", ".markdown"}
)

// Options configures a [Finder].
type Options struct {
	// Exclude holds extra glob patterns matched against the slash separated
	// relative path and against the base name of every entry.
	Exclude []string
	// Extensions overrides DefaultExtensions when not empty.
	Extensions []string
}

// Finder walks a file system and yields Markdown files, pruning excluded
// directories.
type Finder struct {
	globs      []glob.Glob
	extensions []string
}

// New compiles the exclude patterns of opts.
func New(opts Options) (*Finder, error) {
	globs := make([]glob.Glob, 0, len(opts.Exclude))

	for _, p := range opts.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}

		globs = append(globs, g)
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	lower := make([]string, len(exts))
	for i, ext := range exts {
		lower[i] = strings.ToLower(ext)
	}

	return &Finder{globs: globs, extensions: lower}, nil
}

// Walk returns the Markdown files of fsys, depth first in lexical order. Paths
// are relative to the root of fsys. A read error is yielded once and ends the
// sequence.
func (f *Finder) Walk(fsys fs.FS) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.walk(fsys, ".", yield)
	}
}

func (f *Finder) walk(fsys fs.FS, dir string, yield func(string, error) bool) bool {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		yield(dir, err)

		return false
	}

	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	for _, entry := range entries {
		p := path.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if f.Excluded(p) {
				continue
			}

			if !f.walk(fsys, p, yield) {
				return false
			}
		case entry.Type().IsRegular():
			if !f.markdown(p) || f.Excluded(p) {
				continue
			}

			if !yield(p, nil) {
				return false
			}
		}
	}

	return true
}

// Excluded reports whether the relative path p is skipped by the default
// fragments or by one of the exclude patterns.
func (f *Finder) Excluded(p string) bool {
	lower := strings.ToLower(p)

	for _, fragment := range DefaultExcludes {
		if strings.Contains(lower, fragment) {
			return true
		}
	}

	base := path.Base(p)

	for _, g := range f.globs {
		if g.Match(p) || g.Match(base) {
			return true
		}
	}

	return false
}

func (f *Finder) markdown(p string) bool {
	lower := strings.ToLower(p)

	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	return false
}

// Walk is a shorthand for New(opts) followed by [Finder.Walk].
func Walk(fsys fs.FS, opts Options) (iter.Seq2[string, error], error) {
	f, err := New(opts)
	if err != nil {
		return nil, err
	}

	return f.Walk(fsys), nil
}

// Abs joins a path yielded by Walk with the directory the file system was
// opened on.
func Abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
