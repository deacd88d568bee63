package mqttbus

import (
	"errors"
	"fmt"
	"sync"
)

// MaxDynamicTopics bounds the topics that can be added at runtime.
const MaxDynamicTopics = 10

// DefaultTopics are subscribed on every connect.
var DefaultTopics = []string{
	"home/knob/command",
	"home/knob/brightness",
	"home/knob/haptic",
	"emon/emontx3/balance",
	"emon/emontx3/solar",
	"emon/emontx3/import",
	"emon/emontx3/used",
	"emon/emontx3/tariff",
	"home/weather/temperature",
	"home/weather/humidity",
	"home/weather/frost_risk",
	"home/bins/schedule",
	"home/motd",
}

var (
	ErrTooManyTopics = errors.New("mqttbus: dynamic topic limit reached")
	ErrEmptyTopic    = errors.New("mqttbus: empty topic")
)

// topicSet is the subscription list: a fixed static part plus a bounded dynamic part.
type topicSet struct {
	mu      sync.Mutex
	static  []string
	dynamic []string
}

func newTopicSet(static []string) *topicSet {
	return &topicSet{static: append([]string(nil), static...)}
}

// add appends a dynamic topic. Adding a topic that is already present is a no-op
// and reports added=false.
func (t *topicSet) add(topic string) (added bool, err error) {
	if topic == "" {
		return false, ErrEmptyTopic
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.static {
		if s == topic {
			return false, nil
		}
	}
	for _, d := range t.dynamic {
		if d == topic {
			return false, nil
		}
	}
	if len(t.dynamic) >= MaxDynamicTopics {
		return false, fmt.Errorf("%w (%d): %s", ErrTooManyTopics, MaxDynamicTopics, topic)
	}
	t.dynamic = append(t.dynamic, topic)
	return true, nil
}

// all returns static topics followed by dynamic ones.
func (t *topicSet) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.static)+len(t.dynamic))
	out = append(out, t.static...)
	out = append(out, t.dynamic...)
	return out
}
