package main

import "sync"

// session owns the two long-lived handles of a running synchronizer so they
// are always torn down together.
type session struct {
	sub  *Subscription
	poll *poller
	once sync.Once
}

// close disposes both handles once. The poller is stopped even if stopping
// the subscription panics; a nil handle is skipped.
func (s *session) close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		defer s.poll.Stop()
		s.sub.Stop()
	})
}
