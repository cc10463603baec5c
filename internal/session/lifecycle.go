package session

import (
	"fmt"
	"strings"
)

// Phase is the game lifecycle. The set is closed; numPhases must stay last.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseRoundInfo
	PhaseRoundOpen
	PhaseQuizOpen
	PhaseGameResult
	PhaseScoreUpdate
	PhaseEnded
	PhaseRefused
	numPhases
)

var phaseNames = [numPhases]string{
	PhaseWaiting:     "WAITING",
	PhaseRoundInfo:   "ROUND_INFO",
	PhaseRoundOpen:   "ROUND_OPEN",
	PhaseQuizOpen:    "QUIZ_OPEN",
	PhaseGameResult:  "GAME_RESULT",
	PhaseScoreUpdate: "SCORE_UPDATE",
	PhaseEnded:       "ENDED",
	PhaseRefused:     "REFUSED",
}

// transitions lists the expected successors of each phase. Ended and
// Refused are reachable from every non-terminal phase and are added in
// CanTransition.
var transitions = [numPhases][]Phase{
	PhaseWaiting:     {PhaseRoundInfo},
	PhaseRoundInfo:   {PhaseRoundOpen},
	PhaseRoundOpen:   {PhaseQuizOpen, PhaseGameResult},
	PhaseQuizOpen:    {PhaseGameResult},
	PhaseGameResult:  {PhaseScoreUpdate, PhaseRoundInfo},
	PhaseScoreUpdate: {PhaseRoundInfo},
	PhaseEnded:       {PhaseWaiting, PhaseRoundInfo},
	PhaseRefused:     {},
}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) Terminal() bool { return p == PhaseRefused }

func ParsePhase(s string) (Phase, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "GAME_END" {
		return PhaseEnded, nil
	}
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// CanTransition reports whether from -> to is an expected step. Staying in
// the same phase is always fine.
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == PhaseEnded || to == PhaseRefused {
		return true
	}
	for _, n := range transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}
