package asyncrt

import "time"

// Parker is the low-power wait collaborator. Park blocks until Unpark is
// called or timeout elapses; a negative timeout waits for Unpark only.
// An Unpark that happens before Park must make the next Park return at once.
type Parker interface {
	Park(timeout time.Duration)
	Unpark()
}

// ChanParker keeps a single sticky wake token in a buffered channel.
type ChanParker struct {
	token chan struct{}
}

// NewChanParker returns a parker with no pending token.
func NewChanParker() *ChanParker {
	return &ChanParker{token: make(chan struct{}, 1)}
}

// Park consumes the wake token, waiting for it if necessary.
func (p *ChanParker) Park(timeout time.Duration) {
	if timeout < 0 {
		<-p.token
		return
	}
	if timeout == 0 {
		select {
		case <-p.token:
		default:
		}
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.token:
	case <-timer.C:
	}
}

// Unpark deposits the wake token. It never blocks.
func (p *ChanParker) Unpark() {
	select {
	case p.token <- struct{}{}:
	default:
	}
}
