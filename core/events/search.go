package events

// CandidateEvent is emitted for every configuration scored by the profit
// search.
type CandidateEvent struct {
	Round    int
	Seq      int
	Origin   string
	Vehicles int
	Profit   float64
}
