// Package storage resolves and prepares the directory layout the agent
// writes artifacts into: source videos, rendered clips, thumbnails, and
// per-build temp space.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	base string
}

func NewPaths(baseDir string) *Paths {
	return &Paths{base: baseDir}
}

func (p *Paths) VideosDir() string {
	return filepath.Join(p.base, "videos")
}

func (p *Paths) ClipsDir() string {
	return filepath.Join(p.base, "clips")
}

func (p *Paths) ThumbnailsDir() string {
	return filepath.Join(p.base, "thumbnails")
}

func (p *Paths) TempDir() string {
	return filepath.Join(p.base, "temp")
}

// EnsureAll creates every directory the agent writes into. Callers may rely
// on the directories existing after a successful return.
func (p *Paths) EnsureAll() error {
	for _, dir := range []string{p.VideosDir(), p.ClipsDir(), p.ThumbnailsDir(), p.TempDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Contains reports whether path resolves inside one of the artifact
// directories. Used by the file-serving handler to refuse arbitrary reads.
func (p *Paths) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range []string{p.ClipsDir(), p.ThumbnailsDir(), p.VideosDir()} {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(absDir, abs)
		if err == nil && filepath.IsLocal(rel) {
			return true
		}
	}
	return false
}
