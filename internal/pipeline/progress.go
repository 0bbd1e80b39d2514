package pipeline

// stageSpan maps each stage onto its slice of the 0..100 progress range.
// The spans are contiguous so a skipped stage still lands the next stage at
// the right place.
var stageSpan = map[State][2]int{
	StateProbing:         {0, 5},
	StateExtractingAudio: {5, 15},
	StateEnhancing:       {15, 30},
	StateSilenceRemoval:  {30, 40},
	StateTranscribing:    {40, 55},
	StateCropping:        {55, 70},
	StateCompositing:     {70, 75},
	StateEncoding:        {75, 100},
}

// reporter serializes progress events for one job. All calls happen on the
// job's own goroutine, so percentages are delivered in order; the clamp
// keeps them non-decreasing even when a stage reports backwards.
type reporter struct {
	events chan<- Event
	state  State
	last   int
}

func newReporter(events chan<- Event) *reporter {
	return &reporter{events: events, state: StateIdle}
}

// enter moves to a new stage and reports its starting percentage
func (r *reporter) enter(s State, msg string) {
	r.state = s
	r.emit(stageSpan[s][0], msg)
}

// at reports progress within the current stage as a 0..1 fraction
func (r *reporter) at(frac float64, msg string) {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	span := stageSpan[r.state]
	r.emit(span[0]+int(frac*float64(span[1]-span[0])), msg)
}

// done reports the successful terminal event at exactly 100
func (r *reporter) done(msg string) {
	r.state = StateDone
	r.last = 100
	r.events <- Event{State: StateDone, Percent: 100, Message: msg}
}

// fail reports the failed terminal event at the last reached percentage
func (r *reporter) fail(msg string) {
	r.state = StateFailed
	r.events <- Event{State: StateFailed, Percent: r.last, Message: msg}
}

func (r *reporter) emit(percent int, msg string) {
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	r.events <- Event{State: r.state, Percent: percent, Message: msg}
}
