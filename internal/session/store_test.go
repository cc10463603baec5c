package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizsync/internal/domain"
)

var scopeRoom = domain.RoomScope("2", "7")

const (
	gameTopic = "/topic/room/7/game"
	chatTopic = "/topic/room/7/chat"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := NewStore(context.Background(), opts)
	t.Cleanup(s.Close)
	s.ScopeChanged(scopeRoom, 1)
	return s
}

func feed(s *Store, topic string, raws ...string) {
	for _, raw := range raws {
		s.Deliver(domain.Frame{Topic: topic, Body: []byte(raw), Epoch: 1})
	}
}

func nextEffect(t *testing.T, s *Store) Effect {
	t.Helper()
	select {
	case e := <-s.Effects():
		return e
	case <-time.After(time.Second):
		t.Fatal("no effect emitted")
		return nil
	}
}

func TestStore_ScoresResetOnlyOnNewGame(t *testing.T) {
	s := newTestStore(t, Options{})

	feed(s, gameTopic,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
		`{"type":"ROUND_OPEN"}`,
		`{"type":"GAME_RESULT","request":{"winner":"A","title":"t","singer":"s","score":100}}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":100}}`,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":2}}`,
	)
	st := s.Snapshot()
	assert.Equal(t, ScoreBoard{"A": 100}, st.Scores, "next round keeps the running totals")
	assert.Nil(t, st.Result)
	assert.Equal(t, PhaseRoundInfo, st.Phase)
	assert.Equal(t, 1, st.GameSeq)

	feed(s, gameTopic,
		`{"type":"GAME_END"}`,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
	)
	st = s.Snapshot()
	assert.Empty(t, st.Scores)
	assert.Empty(t, st.Board)
	assert.Equal(t, 2, st.GameSeq)
}

func TestStore_DuplicateScoreUpdate(t *testing.T) {
	s := newTestStore(t, Options{})
	up := `{"type":"SCORE_UPDATE","request":{"scores":[{"username":"A","score":100},{"username":"B","score":50}]}}`

	feed(s, gameTopic, up)
	first := s.Snapshot().Scores
	feed(s, gameTopic, up)
	assert.Equal(t, first, s.Snapshot().Scores)
}

func TestStore_MalformedFrameLeavesStateAlone(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"JOIN","request":{"username":"A","isHost":true}}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":10}}`,
	)
	before := s.Snapshot()

	feed(s, gameTopic,
		`not json`,
		`{"request":{"username":"A","score":99}}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":"ninety"}}`,
		`{"type":"TELEPORT","request":{}}`,
		`{"type":"GAME_STATE","request":{"state":"INTERMISSION"}}`,
	)
	assert.Equal(t, before, s.Snapshot())

	feed(s, gameTopic, `{"type":"SCORE_UPDATE","request":{"username":"A","score":20}}`)
	assert.Equal(t, 20, s.Snapshot().Scores["A"])
}

func TestStore_StaleEpochDropped(t *testing.T) {
	s := newTestStore(t, Options{})

	s.Deliver(domain.Frame{Topic: gameTopic, Body: []byte(`{"type":"JOIN","request":{"username":"old"}}`), Epoch: 0})
	feed(s, gameTopic, `{"type":"JOIN","request":{"username":"new"}}`)

	st := s.Snapshot()
	require.Len(t, st.Roster, 1)
	assert.Equal(t, "new", st.Roster[0].Username)
}

func TestStore_ScopeChangeResets(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"JOIN","request":{"username":"A"}}`,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
	)

	other := domain.RoomScope("2", "9")
	s.ScopeChanged(other, 2)
	st := s.Snapshot()
	assert.Equal(t, other, st.Scope)
	assert.Empty(t, st.Roster)
	assert.Equal(t, PhaseWaiting, st.Phase)
	assert.False(t, st.Animation.Rolling)
}

func TestStore_RollAnimation(t *testing.T) {
	s := newTestStore(t, Options{RollTimeout: time.Hour})

	feed(s, gameTopic, `{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`)
	assert.True(t, s.Snapshot().Animation.Rolling)

	feed(s, gameTopic, `{"type":"ROUND_OPEN"}`)
	assert.False(t, s.Snapshot().Animation.Rolling)
}

func TestStore_RollAnimationTimesOut(t *testing.T) {
	s := newTestStore(t, Options{RollTimeout: 20 * time.Millisecond})

	feed(s, gameTopic, `{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`)
	assert.Eventually(t, func() bool {
		st := s.Snapshot()
		return !st.Animation.Rolling && st.Phase == PhaseRoundInfo
	}, time.Second, 5*time.Millisecond)
}

func TestStore_RefusedRedirects(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"JOIN","request":{"username":"A"}}`,
		`{"type":"REFUSED"}`,
		`{"type":"JOIN","request":{"username":"B"}}`,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
	)

	st := s.Snapshot()
	assert.Equal(t, PhaseRefused, st.Phase)
	require.Len(t, st.Roster, 1, "roster events still apply")
	assert.Equal(t, "B", st.Roster[0].Username)
	assert.Zero(t, st.GameSeq)

	e := nextEffect(t, s)
	require.IsType(t, Redirect{}, e)
	assert.Equal(t, Redirect{From: scopeRoom, To: domain.ChannelScope("2")}, e)
}

func TestStore_GameFinished(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestStore(t, Options{Now: func() time.Time { return at }})

	feed(s, gameTopic,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":300}}`,
		`{"type":"GAME_END"}`,
	)

	e := nextEffect(t, s)
	assert.Equal(t, GameFinished{
		Scope:      scopeRoom,
		GameSeq:    1,
		Scores:     ScoreBoard{"A": 300},
		FinishedAt: at,
	}, e)
	assert.Equal(t, PhaseEnded, s.Snapshot().Phase)
}

func TestStore_ChatWithoutType(t *testing.T) {
	s := newTestStore(t, Options{ChatHistory: 2})
	feed(s, chatTopic,
		`{"username":"A","message":"one"}`,
		`{"username":"B","message":"two"}`,
		`{"type":"CHAT","request":{"username":"A","message":"three"}}`,
	)

	chat := s.Snapshot().Chat
	require.Len(t, chat, 2)
	assert.Equal(t, "two", chat[0].Message)
	assert.Equal(t, "three", chat[1].Message)
}

func TestStore_GameStateResync(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic, `{"type":"GAME_STATE","request":{"state":"QUIZ_OPEN"}}`)
	assert.Equal(t, PhaseQuizOpen, s.Snapshot().Phase)
}

func TestStore_OverlayAndHost(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"PARTICIPANTS","request":{"participants":[{"username":"A","isHost":true},{"username":"B"}]}}`,
		`{"type":"HOST_CHANGE","request":{"username":"B"}}`,
		`{"type":"DICE","request":{"username":"B","value":5}}`,
		`{"type":"BOARD_MOVE","request":{"username":"B","position":12}}`,
	)

	st := s.Snapshot()
	host, ok := st.Roster.Host()
	require.True(t, ok)
	assert.Equal(t, "B", host.Username)
	assert.Equal(t, &DiceRoll{Username: "B", Value: 5}, st.Overlay.Dice)
	assert.Equal(t, 12, st.Board["B"])

	s.ClearOverlay(OverlayDice)
	assert.Nil(t, s.Snapshot().Overlay.Dice)
}

func TestStore_WatchKeepsLatest(t *testing.T) {
	s := newTestStore(t, Options{})
	ch, cancel := s.Watch()

	for i := 0; i < 5; i++ {
		feed(s, gameTopic, `{"type":"BOARD_MOVE","request":{"username":"A","position":`+string(rune('1'+i))+`}}`)
	}
	s.Snapshot()

	st := <-ch
	assert.Equal(t, 5, st.Board["A"])

	cancel()
	s.Snapshot()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_GameStateWithoutStateIsDropped(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":100}}`,
	)
	before := s.Snapshot()

	feed(s, gameTopic,
		`{"type":"GAME_STATE"}`,
		`{"type":"GAME_STATE","request":{}}`,
		`{"type":"GAME_STATE","request":{"state":null}}`,
	)
	assert.Equal(t, before, s.Snapshot())

	feed(s, gameTopic, `{"type":"ROUND_INFO","request":{"mode":"SONG","round":2}}`)
	st := s.Snapshot()
	assert.Equal(t, ScoreBoard{"A": 100}, st.Scores, "no phantom restart")
	assert.Equal(t, 1, st.GameSeq)
}

func TestStore_LateFramesAfterGameEnd(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
		`{"type":"GAME_END"}`,
		`{"type":"SCORE_UPDATE","request":{"username":"A","score":100}}`,
		`{"type":"GAME_RESULT","request":{"winner":"A","title":"t","singer":"s","score":100}}`,
		`{"type":"ROUND_OPEN"}`,
	)

	st := s.Snapshot()
	assert.Equal(t, PhaseEnded, st.Phase)
	assert.Equal(t, ScoreBoard{"A": 100}, st.Scores, "late totals still land")
	assert.Nil(t, st.Result)

	feed(s, gameTopic, `{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`)
	st = s.Snapshot()
	assert.Equal(t, PhaseRoundInfo, st.Phase)
	assert.Empty(t, st.Scores)
	assert.Equal(t, 2, st.GameSeq)
}

func TestStore_FramesMissingUsernameAreDropped(t *testing.T) {
	s := newTestStore(t, Options{})
	feed(s, gameTopic,
		`{"type":"PARTICIPANTS","request":{"participants":[{"username":"A","isHost":true},{"username":"B"}]}}`,
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
	)
	before := s.Snapshot()

	feed(s, gameTopic,
		`{"type":"HOST_CHANGE","request":{}}`,
		`{"type":"JOIN","request":{"isHost":true}}`,
		`{"type":"READY","request":{"isReady":true}}`,
		`{"type":"LEAVE","request":{"username":""}}`,
		`{"type":"BOARD_MOVE","request":{"position":3}}`,
		`{"type":"DICE","request":{"value":6}}`,
		`{"type":"SCORE_UPDATE","request":{"score":40}}`,
		`{"type":"SCORE_UPDATE","request":{"scores":[{"username":"A","score":1},{"score":2}]}}`,
	)
	assert.Equal(t, before, s.Snapshot())

	host, ok := s.Snapshot().Roster.Host()
	require.True(t, ok)
	assert.Equal(t, "A", host.Username)
}

func TestStore_GameSeqSurvivesScopeChanges(t *testing.T) {
	s := newTestStore(t, Options{})
	game := []string{
		`{"type":"ROUND_INFO","request":{"mode":"SONG","round":1}}`,
		`{"type":"GAME_END"}`,
	}

	feed(s, gameTopic, game...)
	assert.Equal(t, 1, nextEffect(t, s).(GameFinished).GameSeq)

	s.ScopeChanged(domain.ChannelScope("2"), 2)
	s.ScopeChanged(scopeRoom, 3)
	for _, raw := range game {
		s.Deliver(domain.Frame{Topic: gameTopic, Body: []byte(raw), Epoch: 3})
	}
	assert.Equal(t, 2, nextEffect(t, s).(GameFinished).GameSeq)
	assert.Equal(t, 2, s.Snapshot().GameSeq)
}
