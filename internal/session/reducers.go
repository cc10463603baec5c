package session

import (
	"maps"
	"slices"
)

// Reducers never modify their input; each returns a fresh value.

// ApplyScore sets the absolute total for username. Applying the same update
// twice is the same as applying it once.
func ApplyScore(b ScoreBoard, username string, score int) ScoreBoard {
	out := maps.Clone(b)
	if out == nil {
		out = ScoreBoard{}
	}
	out[username] = score
	return out
}

// ApplyMove keeps the last known cell per user.
func ApplyMove(b BoardPosition, username string, cell int) BoardPosition {
	out := maps.Clone(b)
	if out == nil {
		out = BoardPosition{}
	}
	out[username] = cell
	return out
}

// AddParticipant appends a first-seen user. A known user keeps its slot and
// only has its character refreshed.
func AddParticipant(r Roster, p Participant) Roster {
	out := slices.Clone(r)
	if i := out.index(p.Username); i >= 0 {
		if p.Character != "" {
			out[i].Character = p.Character
		}
		return out
	}
	p.IsHost = false
	return append(out, p)
}

func RemoveParticipant(r Roster, username string) Roster {
	out := slices.Clone(r)
	return slices.DeleteFunc(out, func(p Participant) bool { return p.Username == username })
}

func SetReady(r Roster, username string, ready bool) Roster {
	out := slices.Clone(r)
	if i := out.index(username); i >= 0 {
		out[i].IsReady = ready
	}
	return out
}

// MigrateHost makes username the only host. An unknown username is
// appended, since its JOIN may arrive later on another topic.
func MigrateHost(r Roster, username string) Roster {
	out := slices.Clone(r)
	if out.index(username) < 0 {
		out = append(out, Participant{Username: username})
	}
	for i := range out {
		out[i].IsHost = out[i].Username == username
	}
	return out
}

// ReplaceRoster adopts a full server roster in the given order. Duplicate
// names keep their first slot and only the first host flag survives.
func ReplaceRoster(ps []Participant) Roster {
	out := make(Roster, 0, len(ps))
	host := false
	for _, p := range ps {
		if p.Username == "" || out.index(p.Username) >= 0 {
			continue
		}
		if p.IsHost {
			if host {
				p.IsHost = false
			}
			host = true
		}
		out = append(out, p)
	}
	return out
}

// AppendChat keeps at most limit messages, dropping the oldest.
func AppendChat(log []ChatMessage, m ChatMessage, limit int) []ChatMessage {
	out := append(slices.Clone(log), m)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func ResetScores() ScoreBoard { return ScoreBoard{} }

func ResetBoard() BoardPosition { return BoardPosition{} }

func ResetWinner() *RoundResult { return nil }

func ResetDice(o Overlay) Overlay {
	o.Dice = nil
	return o
}

func ResetOverlay() Overlay { return Overlay{} }

// ClearOverlay empties one slot.
func ClearOverlay(o Overlay, kind OverlayKind) Overlay {
	switch kind {
	case OverlayBubble:
		o.Bubble = nil
	case OverlayDice:
		o = ResetDice(o)
	case OverlayHint:
		o.Hint = ""
	}
	return o
}
