package static

import (
	"fmt"
	"net/http"
	"time"
)

// FileInfo is what a FileStorage reports about a single path.
type FileInfo struct {
	Size    int64
	ModTime time.Time
	Inode   uint64
	IsDir   bool
	Regular bool
}

// AggregateStat describes the resource a response is built from. For a
// single file it is that file's stat; for a manifest it is the sum of sizes,
// the newest modification time, and the sum of inodes of all parts.
type AggregateStat struct {
	Size    int64
	ModTime time.Time
	Inode   uint64
}

// ByteRange is an inclusive byte interval requested by a Range header.
type ByteRange struct {
	From  int64
	To    int64
	Valid bool
}

// Length returns the number of bytes the range covers.
func (b ByteRange) Length() int64 {
	return b.To - b.From + 1
}

// Result is the successful outcome of a request.
type Result struct {
	Status  int
	Header  http.Header
	Message string
	// Written is the number of body bytes streamed to the client.
	Written int64
}

// Manifest lists the files a directory is served as, in byte order.
type Manifest struct {
	Files []string `json:"files"`
}

// ServerMode selects how the HTTP layer treats paths that do not exist.
type ServerMode string

const (
	ModeStatic ServerMode = "static"
	ModeSPA    ServerMode = "spa"
)

// IsValid reports whether m is a known mode.
func (m ServerMode) IsValid() bool {
	switch m {
	case ModeStatic, ModeSPA:
		return true
	default:
		return false
	}
}

// ParseServerMode converts s to a ServerMode, rejecting unknown names.
func ParseServerMode(s string) (ServerMode, error) {
	mode := ServerMode(s)
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid server mode: %s (valid modes: static, spa)", s)
	}
	return mode, nil
}
