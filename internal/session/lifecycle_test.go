package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_TableCoversEveryPhase(t *testing.T) {
	for p := Phase(0); p < numPhases; p++ {
		assert.NotEmpty(t, phaseNames[p], "phase %d has no name", p)
		if !p.Terminal() {
			assert.NotEmpty(t, transitions[p], "%s has no successors", p)
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseWaiting, PhaseRoundInfo, true},
		{PhaseRoundInfo, PhaseRoundOpen, true},
		{PhaseRoundOpen, PhaseQuizOpen, true},
		{PhaseRoundOpen, PhaseGameResult, true},
		{PhaseGameResult, PhaseScoreUpdate, true},
		{PhaseScoreUpdate, PhaseRoundInfo, true},
		{PhaseEnded, PhaseWaiting, true},
		{PhaseQuizOpen, PhaseEnded, true},
		{PhaseWaiting, PhaseRefused, true},
		{PhaseRoundOpen, PhaseRoundOpen, true},

		{PhaseWaiting, PhaseScoreUpdate, false},
		{PhaseRoundInfo, PhaseGameResult, false},
		{PhaseRefused, PhaseWaiting, false},
		{PhaseRefused, PhaseEnded, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase(" round_open ")
	require.NoError(t, err)
	assert.Equal(t, PhaseRoundOpen, p)

	p, err = ParsePhase("GAME_END")
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, p)

	_, err = ParsePhase("INTERMISSION")
	require.Error(t, err)

	assert.Equal(t, "Phase(42)", Phase(42).String())
}

func TestPhase_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		P Phase `json:"p"`
	}{PhaseQuizOpen})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"QUIZ_OPEN"}`, string(b))
}
