// Package mqttbus connects knobd to an MQTT broker and routes incoming
// messages to feature handlers by topic namespace.
package mqttbus

import (
	"log/slog"
	"strings"
	"sync"
)

// Handler receives one message for a namespace it registered.
type Handler func(topic, payload string)

// Namespace returns the routing key of a topic: everything up to the second
// '/'. A topic with a single '/' is its own namespace; a topic without any
// '/' has none.
//
//	emon/emontx3/solar -> emon/emontx3
//	home/motd          -> home/motd
//	status             -> "", false
func Namespace(topic string) (string, bool) {
	first := strings.IndexByte(topic, '/')
	if first < 0 {
		return "", false
	}
	second := strings.IndexByte(topic[first+1:], '/')
	if second < 0 {
		return topic, true
	}
	return topic[:first+1+second], true
}

// Router dispatches messages to the handler registered for their namespace.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for namespace, replacing any earlier handler.
// A nil handler removes the registration.
func (r *Router) Handle(namespace string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil {
		delete(r.handlers, namespace)
		return
	}
	r.handlers[namespace] = h
}

// Namespaces lists the registered namespaces.
func (r *Router) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for ns := range r.handlers {
		out = append(out, ns)
	}
	return out
}

// Route delivers a message and reports whether a handler took it.
func (r *Router) Route(topic, payload string) bool {
	ns, ok := Namespace(topic)
	if !ok {
		r.logger.Warn("mqtt message without namespace", "topic", topic)
		return false
	}

	r.mu.RLock()
	h := r.handlers[ns]
	r.mu.RUnlock()

	if h == nil {
		r.logger.Debug("mqtt message without handler", "topic", topic, "namespace", ns)
		return false
	}
	h(topic, payload)
	return true
}
