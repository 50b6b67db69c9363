package solverlib

import "sync"

// CString is a NUL terminated string owned outside the Go value graph.
// It must be released with Free exactly once.
type CString struct {
	buf   []byte
	freed bool
}

var heap struct {
	sync.Mutex
	live int
}

// Strdup copies s into a new CString.
func Strdup(s string) *CString {
	b := make([]byte, len(s)+1)
	copy(b, s)
	heap.Lock()
	heap.live++
	heap.Unlock()
	return &CString{buf: b}
}

// String returns the content up to the terminating NUL.
func (c *CString) String() string {
	if c == nil || c.freed {
		panic("solverlib: use of a freed CString")
	}
	return string(c.buf[:len(c.buf)-1])
}

// Free releases c. Freeing nil is a no-op; freeing twice panics.
func Free(c *CString) {
	if c == nil {
		return
	}
	heap.Lock()
	defer heap.Unlock()
	if c.freed {
		panic("solverlib: double free of CString")
	}
	c.freed, c.buf = true, nil
	heap.live--
}

// LiveStrings returns the number of CStrings not yet freed.
func LiveStrings() int {
	heap.Lock()
	defer heap.Unlock()
	return heap.live
}
