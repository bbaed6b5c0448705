// Package shared implements the per-image mutable context threaded through
// every track (spec §3 "shared", §5 Concurrency & Resource Model): a
// reference-counted, mutex-guarded handle used for whole-image hashing and
// cross-track statistics. It lives in its own package so both disk.DiskImage
// (which owns it) and track.Track (which holds a handle to it) can import it
// without a cycle.
package shared

import (
	"crypto/sha256"
	"hash"
	"sync"
)

// DiskContext is shared by every track within one DiskImage. It is never
// shared across images.
type DiskContext struct {
	mu           sync.Mutex
	hash         hash.Hash
	sectorWrites int
	trackWrites  int
}

// NewDiskContext creates an empty context with a fresh rolling hash.
func NewDiskContext() *DiskContext {
	return &DiskContext{hash: sha256.New()}
}

// UpdateHash folds buf into the image's rolling content hash. Called by a
// track whenever its persisted content changes (format, sector write).
func (c *DiskContext) UpdateHash(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash.Write(buf)
}

// Sum returns the current whole-image hash.
func (c *DiskContext) Sum() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hash.Sum(nil)
}

// RecordSectorWrite increments the image-wide sector write counter.
func (c *DiskContext) RecordSectorWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sectorWrites++
}

// RecordTrackWrite increments the image-wide track write/format counter.
func (c *DiskContext) RecordTrackWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackWrites++
}

// Stats returns a snapshot of the running counters.
func (c *DiskContext) Stats() (sectorWrites, trackWrites int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sectorWrites, c.trackWrites
}
