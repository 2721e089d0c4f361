// Package localfs holds the filesystem helpers shared by the download engine
// and the cloud publisher: hidden-name filtering, audio file walks and
// empty playlist folder cleanup.
package localfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// AudioExtensions lists the file types spotdl can produce.
var AudioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
}

// IsHiddenName returns true for dot-files. "." and ".." are not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// IsAudioFile reports whether path has a known audio extension.
func IsAudioFile(path string) bool {
	_, ok := AudioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ContentType returns the MIME type for an audio file, or
// application/octet-stream.
func ContentType(path string) string {
	if ct, ok := AudioExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// WalkOptions configures Walk.
type WalkOptions struct {
	// IncludeHidden visits dot-files and descends into dot-directories.
	IncludeHidden bool

	// AudioOnly restricts the callback to files with an audio extension.
	AudioOnly bool
}

// WalkFunc receives the path of each regular file visited.
type WalkFunc func(path string, info fs.FileInfo) error

// Walk visits regular files under root depth-first. Unreadable entries are
// skipped; an error from fn stops the walk.
func Walk(root string, opts WalkOptions, fn WalkFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != root && !opts.IncludeHidden && IsHiddenName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if opts.AudioOnly && !IsAudioFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return fn(path, info)
	})
}

// RemoveEmptyDirs deletes the empty immediate child directories of root and
// returns the names it removed. Deeper levels are left alone: playlist
// folders sit directly under the output root.
func RemoveEmptyDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		children, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(children) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, entry.Name())
	}
	return removed, errors.Join(errs...)
}
