package state

// Decision is the outcome of Throttle.Admit.
type Decision int

const (
	Skip Decision = iota
	PublishSettled
	PublishInterval
)

func (d Decision) String() string {
	switch d {
	case PublishSettled:
		return "settled"
	case PublishInterval:
		return "interval"
	default:
		return "skip"
	}
}

// Throttle limits how often a moving flight state is republished. Frames at
// rest always pass so observers see the final resting state promptly.
type Throttle struct {
	every  uint64
	frames uint64
}

// NewThrottle publishes every Nth moving frame; every < 1 is treated as 1.
func NewThrottle(every int) *Throttle {
	if every < 1 {
		every = 1
	}
	return &Throttle{every: uint64(every)}
}

// Admit counts one frame and decides whether to publish it.
func (t *Throttle) Admit(settled bool) Decision {
	t.frames++
	switch {
	case settled:
		return PublishSettled
	case t.frames%t.every == 0:
		return PublishInterval
	}
	return Skip
}
