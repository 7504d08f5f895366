package asyncrt

// JoinSet completes once every member future has completed. Each member is
// polled until it is ready and never again afterwards.
type JoinSet struct {
	futures []Future
	done    []bool
	left    int
}

// Join groups futs into one future.
func Join(futs ...Future) *JoinSet {
	return &JoinSet{
		futures: futs,
		done:    make([]bool, len(futs)),
		left:    len(futs),
	}
}

// Remaining returns how many members have not completed.
func (j *JoinSet) Remaining() int { return j.left }

func (j *JoinSet) Poll(cx *Context) PollOutcome {
	for i, f := range j.futures {
		if j.done[i] {
			continue
		}
		if f.Poll(cx) == PollReady {
			j.done[i] = true
			j.left--
		}
	}
	if j.left == 0 {
		return PollReady
	}
	return PollPending
}

// Cancel cancels every member that is still pending.
func (j *JoinSet) Cancel() {
	for i, f := range j.futures {
		if !j.done[i] {
			cancelFuture(f)
		}
	}
}
