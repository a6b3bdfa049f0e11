package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
)

type streamPlan struct {
	status       int
	header       http.Header
	start        int64
	length       int64
	transforming bool
}

// stream writes the resource's files to w in order. Status and headers are
// committed lazily, once the first file is open and its transform built, so
// that an early failure can still become a clean error response. committed
// reports whether the status line had been sent when stream returned.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, res *resource, plan streamPlan) (written int64, committed bool, err error) {
	commit := func() {
		copyHeader(w.Header(), plan.header)
		w.WriteHeader(plan.status)
		committed = true
	}

	if r.Method == http.MethodHead {
		commit()
		return 0, true, nil
	}

	ctx := r.Context()
	single := len(res.files) == 1

	for _, name := range res.files {
		if err := ctx.Err(); err != nil {
			return written, committed, err
		}

		n, err := s.streamFile(ctx, w, r, name, single, plan, func() {
			if !committed {
				commit()
			}
		})
		written += n
		if err != nil {
			return written, committed, err
		}
	}

	return written, committed, nil
}

func (s *Server) streamFile(ctx context.Context, w io.Writer, r *http.Request, name string, single bool, plan streamPlan, commit func()) (int64, error) {
	f, err := s.storage.Open(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.log.Warn("failed to close file", "path", name, "err", closeErr)
		}
	}()

	var src io.Reader = &ctxReader{ctx: ctx, r: f}
	if single {
		if plan.start > 0 {
			if _, err := f.Seek(plan.start, io.SeekStart); err != nil {
				return 0, fmt.Errorf("seek %s: %w", name, err)
			}
		}
		src = io.LimitReader(src, plan.length)
	}

	var transform Transform
	if plan.transforming {
		transform, err = s.opts.Transform(filepath.Join(s.opts.Root, name), r.URL.Path)
		if err != nil {
			return 0, fmt.Errorf("transform %s: %w", name, err)
		}
	}

	commit()

	dst := &countingWriter{w: w}
	if transform != nil {
		err = transform.Apply(dst, src)
	} else {
		_, err = io.Copy(dst, src)
	}
	if err != nil {
		return dst.n, fmt.Errorf("write %s: %w", name, err)
	}

	return dst.n, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
