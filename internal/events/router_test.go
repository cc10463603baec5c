package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tally struct {
	scores map[string]int
	hint   string
	chats  int
}

func newTallyRouter() *Router[tally] {
	r := NewRouter[tally]()
	Register(r, KindScoreUpdate, func(st *tally, b ScoreUpdateBody) {
		for _, e := range b.Entries() {
			st.scores[e.Username] = e.Score
		}
	})
	Register(r, KindHint, func(st *tally, b HintBody) { st.hint = b.Hint })
	Register(r, KindChat, func(st *tally, b ChatBody) { st.chats++ })
	return r
}

func TestRouter_Dispatch(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		raw     string
		want    Kind
		wantErr error
		check   func(t *testing.T, st tally)
	}{
		{
			name: "request body",
			raw:  `{"type":"SCORE_UPDATE","request":{"username":"A","score":100}}`,
			want: KindScoreUpdate,
			check: func(t *testing.T, st tally) {
				assert.Equal(t, map[string]int{"A": 100}, st.scores)
			},
		},
		{
			name: "inline body",
			raw:  `{"type":"HINT","hint":"starts with B"}`,
			want: KindHint,
			check: func(t *testing.T, st tally) {
				assert.Equal(t, "starts with B", st.hint)
			},
		},
		{
			name:  "kind inferred from topic",
			topic: "/topic/room/7/chat",
			raw:   `{"username":"A","message":"hi"}`,
			want:  KindChat,
			check: func(t *testing.T, st tally) {
				assert.Equal(t, 1, st.chats)
			},
		},
		{name: "not json", raw: `{"type":`, wantErr: ErrMalformedFrame},
		{name: "array payload", raw: `[1,2]`, wantErr: ErrMalformedFrame},
		{name: "missing type", raw: `{"score":1}`, wantErr: ErrMissingType},
		{name: "unknown kind", raw: `{"type":"TELEPORT"}`, want: "TELEPORT", wantErr: ErrUnknownEvent},
		{name: "bad body", raw: `{"type":"SCORE_UPDATE","request":{"score":"lots"}}`, want: KindScoreUpdate, wantErr: ErrMalformedFrame},
		{name: "missing username", raw: `{"type":"SCORE_UPDATE","request":{"score":5}}`, want: KindScoreUpdate, wantErr: ErrMalformedFrame},
		{name: "batch entry without username", raw: `{"type":"SCORE_UPDATE","scores":[{"username":"A","score":1},{"score":2}]}`, want: KindScoreUpdate, wantErr: ErrMalformedFrame},
		{name: "chat without message", topic: "/topic/room/7/chat", raw: `{"username":"A"}`, want: KindChat, wantErr: ErrMalformedFrame},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTallyRouter()
			r.InferKind(func(topic string) Kind {
				if topic == "/topic/room/7/chat" {
					return KindChat
				}
				return ""
			})
			st := tally{scores: map[string]int{}}

			kind, err := r.Dispatch(&st, tc.topic, []byte(tc.raw))
			assert.Equal(t, tc.want, kind)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, st.scores)
				assert.Empty(t, st.hint)
				return
			}
			require.NoError(t, err)
			tc.check(t, st)
		})
	}
}

func TestRouter_MultipleHandlersAllOrNothing(t *testing.T) {
	r := NewRouter[tally]()
	Register(r, KindDice, func(st *tally, b DiceBody) { st.hint = b.Username })
	Register(r, KindDice, func(st *tally, b BoardMoveBody) { st.scores[b.Username] = b.Position })

	st := tally{scores: map[string]int{}}
	_, err := r.Dispatch(&st, "", []byte(`{"type":"DICE","username":"A","value":4,"position":9}`))
	require.NoError(t, err)
	assert.Equal(t, "A", st.hint)
	assert.Equal(t, 9, st.scores["A"])

	st = tally{scores: map[string]int{}}
	_, err = r.Dispatch(&st, "", []byte(`{"type":"DICE","username":"A","value":4,"position":"nine"}`))
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Empty(t, st.hint)
}

func TestRouter_ValidationFailureAppliesNothing(t *testing.T) {
	r := NewRouter[tally]()
	Register(r, KindDice, func(st *tally, b HintBody) { st.hint = b.Hint })
	Register(r, KindDice, func(st *tally, b DiceBody) { st.scores[b.Username] = b.Value })

	st := tally{scores: map[string]int{}}
	_, err := r.Dispatch(&st, "", []byte(`{"type":"DICE","hint":"h","value":4}`))
	require.ErrorIs(t, err, ErrMalformedFrame)
	assert.Empty(t, st.hint)
	assert.Empty(t, st.scores)
}

func TestRegister_EmptyKindPanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(NewRouter[tally](), "", func(*tally, Empty) {})
	})
}

func TestEncode(t *testing.T) {
	b, err := Encode(KindChat, ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"CHAT","request":{"message":"hello"}}`, string(b))

	b, err = Encode(KindStartGame, nil)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, KindStartGame, env.Type)
	assert.Empty(t, env.Request)
}
