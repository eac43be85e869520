package installer

import "fmt"

type State int

const (
	StateNotInstalled State = iota
	StateDownloading
	StateDownloadFailed
	StateAssembled
	StateReplaceBlocked
	StateInstalled
	StateLaunched
)

func (s State) String() string {
	switch s {
	case StateNotInstalled:
		return "NotInstalled"
	case StateDownloading:
		return "Downloading"
	case StateDownloadFailed:
		return "DownloadFailed"
	case StateAssembled:
		return "Assembled"
	case StateReplaceBlocked:
		return "ReplaceBlocked"
	case StateInstalled:
		return "Installed"
	case StateLaunched:
		return "Launched"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Installed moves back to Downloading only when an update is forced.
var transitions = map[State][]State{
	StateNotInstalled: {StateDownloading},
	StateDownloading:  {StateDownloadFailed, StateAssembled},
	StateAssembled:    {StateReplaceBlocked, StateInstalled},
	StateInstalled:    {StateDownloading, StateLaunched},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}
