package models

// ReactionTrialsPerSession is the number of completed trials that make up a
// reaction-test session.
const ReactionTrialsPerSession = 5

// ReactionTrial is one completed (non-early) reaction measurement.
type ReactionTrial struct {
	// LatencyMs is the time between the reaction window opening and the press.
	LatencyMs int64

	// Index is the trial's position in its session, 0..4.
	Index int
}
