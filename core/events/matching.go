package events

// GroupSolvedEvent is published once the matching of a group converged.
type GroupSolvedEvent struct {
	Group         string
	Trips         int
	Vehicles      int
	Unconstrained int
	Rejections    int
	Fallbacks     int
}
