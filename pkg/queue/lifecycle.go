package queue

// transitions lists every allowed state change.
var transitions = map[State][]State{
	StatePending:    {StateProcessing, StateFailed},
	StateProcessing: {StateCompleted, StateFailed, StatePending},
}

// CanTransition reports whether a message may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
