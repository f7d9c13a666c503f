package rworker

import "sync"

// TryJob starts fn on a new goroutine when the rate channel has a free slot and
// reports whether it did. The slot is held until fn returns. Errors go to errCh
// without blocking; a nil errCh drops them.
func TryJob(wg *sync.WaitGroup, fn func() error, rate chan struct{}, errCh chan<- error) bool {
	select {
	case rate <- struct{}{}:
	default:
		return false
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() { <-rate }()
		if err := fn(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	return true
}
