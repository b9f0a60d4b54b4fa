package governance

import "fmt"

// State is the derived lifecycle state of a proposal. The numbering
// follows the usual governor ordering.
type State int

const (
	Pending State = iota
	Active
	Canceled
	Defeated
	Succeeded
	Queued
	Expired
	Executed
)

var stateNames = [...]string{
	Pending:   "Pending",
	Active:    "Active",
	Canceled:  "Canceled",
	Defeated:  "Defeated",
	Succeeded: "Succeeded",
	Queued:    "Queued",
	Expired:   "Expired",
	Executed:  "Executed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case Canceled, Defeated, Expired, Executed:
		return true
	}
	return false
}

// ParseState resolves a state name such as "Succeeded".
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown proposal state %q", name)
}

// Support is the direction of a vote.
type Support int64

const (
	Against Support = 0
	For     Support = 1
	Abstain Support = 2
)

func (s Support) String() string {
	switch s {
	case Against:
		return "Against"
	case For:
		return "For"
	case Abstain:
		return "Abstain"
	}
	return fmt.Sprintf("Support(%d)", int64(s))
}

// Valid reports whether s is Against, For or Abstain.
func (s Support) Valid() bool {
	return s >= Against && s <= Abstain
}

// ParseSupport accepts "For", "Against", "Abstain" or their numbers.
func ParseSupport(name string) (Support, error) {
	switch name {
	case "Against", "against", "0":
		return Against, nil
	case "For", "for", "1":
		return For, nil
	case "Abstain", "abstain", "2":
		return Abstain, nil
	}
	return 0, fmt.Errorf("unknown vote support %q", name)
}
