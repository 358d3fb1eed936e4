package services

// Состояния привязки пользователя.
const (
	StateUnverified      = "unverified"
	StatePending         = "pending"
	StateVerified        = "verified"
	StateVerifiedPending = "verified_pending" // привязка есть, параллельно идёт перепривязка
)

// Допустимые переходы состояний.
// NB: pending -> pending это повторный /verify (старый код при этом умирает),
// verified_pending -> verified покрывает и успешный Complete, и Cancel.
var verifyTransitions = map[string]map[string]bool{
	StateUnverified:      {StatePending: true},
	StatePending:         {StatePending: true, StateVerified: true, StateUnverified: true},
	StateVerified:        {StateVerifiedPending: true},
	StateVerifiedPending: {StateVerifiedPending: true, StateVerified: true},
}

func canTransition(current, to string) bool {
	nexts, ok := verifyTransitions[current]
	if !ok {
		return false
	}
	return nexts[to]
}

// stateOf — текущее состояние по наличию pending-заявки и привязки.
func stateOf(hasPending, hasBinding bool) string {
	switch {
	case hasPending && hasBinding:
		return StateVerifiedPending
	case hasPending:
		return StatePending
	case hasBinding:
		return StateVerified
	default:
		return StateUnverified
	}
}
