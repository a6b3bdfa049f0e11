package static

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// ManifestFile lists the files concatenated when a directory has no index.
const ManifestFile = "index.json"

// resource is what a request resolved to: one file, or the ordered files of
// a directory manifest served as a single entity.
type resource struct {
	files []string
	stat  AggregateStat
}

func singleFile(rel string, info FileInfo) *resource {
	return &resource{
		files: []string{rel},
		stat: AggregateStat{
			Size:    info.Size,
			ModTime: info.ModTime,
			Inode:   info.Inode,
		},
	}
}

// serveDir answers a request that resolved to a directory: its index file
// when present (redirecting to add a trailing slash first), otherwise the
// concatenation described by its manifest.
func (s *Server) serveDir(w http.ResponseWriter, r *http.Request, dir string, status int, perCall http.Header) (*Result, error) {
	ctx := r.Context()

	index := filepath.Join(dir, s.opts.IndexFile)
	info, err := s.storage.Stat(ctx, index)
	if err == nil && info.Regular {
		if p := r.URL.Path; p != "" && !strings.HasSuffix(p, "/") {
			location := r.URL.EscapedPath() + "/"
			if r.URL.RawQuery != "" {
				location += "?" + r.URL.RawQuery
			}
			return s.finish(w, http.StatusMovedPermanently, http.Header{"Location": {location}}, false, 0, nil)
		}
		return s.respond(w, r, singleFile(index, info), status, perCall)
	}

	data, err := s.storage.ReadFile(ctx, filepath.Join(dir, ManifestFile))
	if err != nil {
		return s.fail(w, http.StatusNotFound, fmt.Errorf("read manifest in %q: %w", dir, err))
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		s.log.Error("malformed manifest", "dir", dir, "err", err)
		return s.fail(w, http.StatusInternalServerError, fmt.Errorf("parse manifest in %q: %w: %w", dir, ErrInternal, err))
	}
	if len(manifest.Files) == 0 {
		return s.fail(w, http.StatusNotFound, fmt.Errorf("manifest in %q lists no files: %w", dir, ErrNotFound))
	}

	res, err := s.aggregate(ctx, dir, manifest.Files)
	if err != nil {
		return s.fail(w, http.StatusNotFound, err)
	}

	return s.respond(w, r, res, status, perCall)
}

// aggregate stats every manifest entry, relative to dir, and combines them
// into one resource. Any entry that escapes the root, is missing or is not a
// regular file fails the whole manifest.
func (s *Server) aggregate(ctx context.Context, dir string, names []string) (*resource, error) {
	res := &resource{files: make([]string, 0, len(names))}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, rel, err := Resolve(s.opts.Root, path.Join(filepath.ToSlash(dir), name))
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", name, ErrNotFound)
		}

		info, err := s.storage.Stat(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", name, err)
		}
		if !info.Regular {
			return nil, fmt.Errorf("manifest entry %q: not a regular file: %w", name, ErrNotFound)
		}

		res.files = append(res.files, rel)
		res.stat.Size += info.Size
		res.stat.Inode += info.Inode
		if info.ModTime.After(res.stat.ModTime) {
			res.stat.ModTime = info.ModTime
		}
	}

	return res, nil
}
