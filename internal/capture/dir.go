// Package capture lists the extra screenshots queued on disk for the next
// debug pass.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rbright/cluely/internal/gateway"
)

// DirSource reads screenshots from one directory. It implements
// gateway.ScreenshotSource.
type DirSource struct {
	Dir        string
	Max        int
	Extensions []string
}

type candidate struct {
	path    string
	modTime time.Time
}

// Screenshots returns up to Max images, oldest first, each with an inline
// data-URL preview. A missing directory is an empty queue.
func (s DirSource) Screenshots(ctx context.Context) ([]gateway.Screenshot, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []gateway.Screenshot{}, nil
		}
		return nil, fmt.Errorf("read screenshot dir %q: %w", s.Dir, err)
	}

	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.accepts(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(s.Dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].path < candidates[j].path
		}
		return candidates[i].modTime.Before(candidates[j].modTime)
	})
	if s.Max > 0 && len(candidates) > s.Max {
		candidates = candidates[len(candidates)-s.Max:]
	}

	out := make([]gateway.Screenshot, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		preview, err := dataURL(c.path)
		if err != nil {
			return nil, err
		}
		out = append(out, gateway.Screenshot{Path: c.path, Preview: preview})
	}
	return out, nil
}

func (s DirSource) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func dataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read screenshot %q: %w", path, err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
