package playback

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"

	"ledcat/internal/stream"
)

// IgnoreFileName is read from every directory source; its lines are
// gitignore patterns applied in addition to the configured ones.
const IgnoreFileName = ".ledcatignore"

// SourceOpener opens file sources by path.
type SourceOpener struct {
	fs  billy.Filesystem
	abs bool
}

// NewOSOpener opens sources from the host filesystem.
func NewOSOpener() *SourceOpener {
	return &SourceOpener{fs: osfs.New("/"), abs: true}
}

// NewOpener opens sources from fs; identifiers are used as fs paths unchanged.
func NewOpener(fs billy.Filesystem) *SourceOpener {
	return &SourceOpener{fs: fs}
}

// Filesystem returns the filesystem sources are opened from.
func (o *SourceOpener) Filesystem() billy.Filesystem {
	return o.fs
}

func (o *SourceOpener) path(sourceID string) (string, error) {
	if !o.abs {
		return sourceID, nil
	}
	return filepath.Abs(sourceID)
}

// Open opens sourceID for reading.
func (o *SourceOpener) Open(sourceID string) (io.ReadCloser, error) {
	p, err := o.path(sourceID)
	if err != nil {
		return nil, err
	}
	f, err := o.fs.Open(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat describes sourceID. Standard input has no file info.
func (o *SourceOpener) Stat(sourceID string) (os.FileInfo, error) {
	if stream.IsStdin(sourceID) {
		return nil, fmt.Errorf("%q is standard input", sourceID)
	}
	p, err := o.path(sourceID)
	if err != nil {
		return nil, err
	}
	return o.fs.Stat(p)
}

// ResolveSources expands directory sources into their regular files in
// lexical order, skipping names that match the ignore patterns or the
// directory's IgnoreFileName. Other identifiers pass through unchanged,
// including paths that do not exist; those fail when opened.
func (o *SourceOpener) ResolveSources(ids []string, patterns []string) ([]string, error) {
	var resolved []string
	for _, id := range ids {
		if stream.IsStdin(id) {
			resolved = append(resolved, id)
			continue
		}

		info, err := o.Stat(id)
		if err != nil || !info.IsDir() {
			resolved = append(resolved, id)
			continue
		}

		files, err := o.expandDir(id, patterns)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", id, err)
		}
		log.Debugf("[Sources] %s expanded to %d files", id, len(files))
		resolved = append(resolved, files...)
	}
	return resolved, nil
}

func (o *SourceOpener) expandDir(dir string, patterns []string) ([]string, error) {
	p, err := o.path(dir)
	if err != nil {
		return nil, err
	}

	entries, err := o.fs.ReadDir(p)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := append([]string(nil), patterns...)
	lines = append(lines, o.readIgnoreFile(p)...)
	matcher := ignore.CompileIgnoreLines(lines...)

	var files []string
	for _, e := range entries {
		name := e.Name()
		if name == IgnoreFileName || !e.Mode().IsRegular() {
			continue
		}
		if matcher.MatchesPath(name) {
			log.Debugf("[Sources] %s ignored", name)
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

func (o *SourceOpener) readIgnoreFile(dir string) []string {
	f, err := o.fs.Open(o.fs.Join(dir, IgnoreFileName))
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}
