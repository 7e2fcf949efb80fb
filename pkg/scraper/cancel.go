package scraper

import "sync"

// CancelToken stops a running scrape from another goroutine. The zero value
// is not usable; create one with NewCancelToken.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel requests cancellation. Calling it more than once is harmless.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Cancelled reports whether Cancel was called. A nil token is never
// cancelled.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done is closed on cancellation
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}
