package device

import (
	"strings"
	"sync"
)

// Stream holds the single shared device stream URL pushed by the camera
// host. There is one per process, mutated only through the token-gated
// control surface.
type Stream struct {
	mu  sync.RWMutex
	url string
}

func NewStream() *Stream {
	return &Stream{}
}

// Set stores the trimmed URL and returns it.
func (s *Stream) Set(url string) string {
	url = strings.TrimSpace(url)

	s.mu.Lock()
	s.url = url
	s.mu.Unlock()

	return url
}

// URL returns the current stream URL; ok is false while none has been set.
func (s *Stream) URL() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.url, s.url != ""
}
