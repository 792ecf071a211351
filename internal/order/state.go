package order

import "fmt"

// The lifecycle is linear with a cancellation branch:
//
//	pending -> processing -> shipped -> delivered
//	pending, processing   -> cancelled
//
// delivered and cancelled are terminal. Transitions are validated here
// regardless of what any UI offers.
var successor = map[Status]Status{
	StatusPending:    StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

var cancellableFrom = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
}

// TransitionError reports a rejected status change, keeping both ends of the
// attempted transition for the admin-facing message.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %q to %q", e.From, e.To)
}

func IsTerminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition allows only the immediate successor, or cancellation from a
// state that has not shipped yet.
func CanTransition(from, to Status) error {
	if !ValidStatus(to) {
		return fmt.Errorf("unknown order status %q", to)
	}
	if to == StatusCancelled {
		if cancellableFrom[from] {
			return nil
		}
		return &TransitionError{From: from, To: to}
	}
	if successor[from] == to {
		return nil
	}
	return &TransitionError{From: from, To: to}
}
