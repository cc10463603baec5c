package subscription

import (
	"strings"

	"quizsync/internal/domain"
)

// Topics builds destination names from the configured prefixes.
type Topics struct {
	TopicPrefix string // "/topic"
	UserPrefix  string // "/user/queue"
}

func (t Topics) withDefaults() Topics {
	if t.TopicPrefix == "" {
		t.TopicPrefix = "/topic"
	}
	if t.UserPrefix == "" {
		t.UserPrefix = "/user/queue"
	}
	t.TopicPrefix = strings.TrimSuffix(t.TopicPrefix, "/")
	t.UserPrefix = strings.TrimSuffix(t.UserPrefix, "/")
	return t
}

// For returns the topic set of a scope. The idle scope has none.
func (t Topics) For(s domain.Scope) []string {
	t = t.withDefaults()
	switch s.Kind {
	case domain.ScopeChannel:
		return []string{t.TopicPrefix + "/channel/" + s.Channel}
	case domain.ScopeGameRoom:
		room := t.TopicPrefix + "/room/" + s.Room
		return []string{
			room,
			room + "/game",
			room + "/chat",
			t.UserPrefix + "/room/" + s.Room,
		}
	default:
		return nil
	}
}
