package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	ErrMalformedFrame = errors.New("malformed_frame")
	ErrMissingType    = errors.New("missing_type")
	ErrUnknownEvent   = errors.New("unknown_event")
)

// rawHandler decodes a body and returns the reducer application, so every
// body of a frame is decoded before any state is touched.
type rawHandler[S any] func(body json.RawMessage) (func(*S), error)

// Router keeps a map[kind][]handler, à-la gin.Engine.
type Router[S any] struct {
	mu       sync.RWMutex
	handlers map[Kind][]rawHandler[S]
	infer    func(topic string) Kind
}

func NewRouter[S any]() *Router[S] {
	return &Router[S]{handlers: make(map[Kind][]rawHandler[S])}
}

// InferKind sets the fallback used when a payload has no "type", so a
// topic can imply the kind.
func (r *Router[S]) InferKind(f func(topic string) Kind) {
	r.mu.Lock()
	r.infer = f
	r.mu.Unlock()
}

// Register binds a kind to a strongly-typed reducer. Several reducers may
// share a kind; they run in registration order. Bodies are checked against
// their `validate` tags before any reducer runs.
func Register[S any, B any](r *Router[S], kind Kind, h func(st *S, body B)) {
	if kind == "" {
		panic("events router: empty kind")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[kind] = append(r.handlers[kind], func(body json.RawMessage) (func(*S), error) {
		var b B
		if len(body) > 0 && !bytes.Equal(body, []byte("null")) {
			if err := json.Unmarshal(body, &b); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, kind, err)
			}
		}
		if err := validateBody(b); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, kind, err)
		}
		return func(st *S) { h(st, b) }, nil
	})
}

// validateBody runs the `validate` tags of struct bodies. A frame missing a
// required field is malformed, never a zero-valued update.
func validateBody(b any) error {
	v := reflect.ValueOf(b)
	if v.Kind() != reflect.Struct || v.NumField() == 0 {
		return nil
	}
	return validate.Struct(b)
}

func (r *Router[S]) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind]) > 0
}

// Dispatch applies raw to st. On any error st is left untouched.
func (r *Router[S]) Dispatch(st *S, topic string, raw []byte) (Kind, error) {
	kind, body, err := r.classify(topic, raw)
	if err != nil {
		return kind, err
	}

	r.mu.RLock()
	hs := r.handlers[kind]
	r.mu.RUnlock()
	if len(hs) == 0 {
		return kind, ErrUnknownEvent
	}

	apply := make([]func(*S), 0, len(hs))
	for _, h := range hs {
		fn, err := h(body)
		if err != nil {
			return kind, err
		}
		apply = append(apply, fn)
	}
	for _, fn := range apply {
		fn(st)
	}
	return kind, nil
}

func (r *Router[S]) classify(topic string, raw []byte) (Kind, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	kind := env.Type
	if kind == "" {
		r.mu.RLock()
		infer := r.infer
		r.mu.RUnlock()
		if infer != nil {
			kind = infer(topic)
		}
	}
	if kind == "" {
		return "", nil, ErrMissingType
	}

	if len(env.Request) > 0 {
		return kind, env.Request, nil
	}
	return kind, raw, nil
}

// Encode builds an outbound frame body.
func Encode(kind Kind, request any) ([]byte, error) {
	env := struct {
		Type    Kind `json:"type"`
		Request any  `json:"request,omitempty"`
	}{Type: kind, Request: request}
	return json.Marshal(env)
}
