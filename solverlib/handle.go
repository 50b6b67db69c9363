package solverlib

import (
	"sync"
	"sync/atomic"
)

// Handle is an opaque token for a Go value handed through the library.
// The zero Handle is never valid.
type Handle uintptr

var (
	handles   = sync.Map{}
	handleIdx atomic.Uintptr
)

// NewHandle returns a handle for v, valid until Delete is called.
func NewHandle(v any) Handle {
	h := handleIdx.Add(1)
	if h == 0 {
		panic("solverlib: ran out of handle space")
	}
	handles.Store(h, v)
	return Handle(h)
}

// Lookup returns the value of h and whether h is valid.
func (h Handle) Lookup() (any, bool) {
	return handles.Load(uintptr(h))
}

// Delete invalidates h. It panics if h is already invalid.
func (h Handle) Delete() {
	if _, ok := handles.LoadAndDelete(uintptr(h)); !ok {
		panic("solverlib: misuse of an invalid Handle")
	}
}
