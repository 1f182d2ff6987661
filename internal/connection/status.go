package connection

import "fmt"

// Status is the lifecycle state of a connection record.
type Status int

const (
	Connecting Status = iota
	Open
	Failed
	Closed
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{Connecting, Open, Failed, Closed}

var statusNames = map[Status]string{
	Connecting: "Connecting",
	Open:       "Open",
	Failed:     "Failed",
	Closed:     "Closed",
}

// transitions holds the legal forward moves. Terminal states have no entry.
var transitions = map[Status][]Status{
	Connecting: {Open, Failed},
	Open:       {Closed},
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText renders the status name, so JSON and YAML output read "Open"
// instead of 1.
func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
