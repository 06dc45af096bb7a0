// Package testing holds helpers shared by tests across packages.
package testing

import (
	"bytes"
	"sync"
)

// Buffer is a goroutine-safe bytes.Buffer for capturing log output from
// components that write concurrently.
type Buffer struct {
	buffer bytes.Buffer
	mutex  sync.RWMutex
}

func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

func (b *Buffer) String() string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.buffer.String()
}

func (b *Buffer) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.buffer.Reset()
}
