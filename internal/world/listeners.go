package world

import (
	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
)

// ConsoleLineListener receives every line fed through the dispatcher, parsed
// or not.
type ConsoleLineListener interface {
	OnConsoleLineParsed(world *World, event events.Event)
	OnConsoleLineUnparsed(world *World, rawLine string)
}

// EventListener receives the higher level world events produced by the state
// machine. A single object may implement both listener interfaces.
type EventListener interface {
	OnPlayerStatusUpdate(world *World, player *Player)
	OnChatMsg(world *World, player *Player, message string)
	OnPlayerDroppedFromServer(world *World, player *Player, reason string)
	OnLocalPlayerSpawned(world *World, class tf.PlayerClass)
	OnLocalPlayerInitialized(world *World, initialized bool)
}

// NopEventListener provides no-op implementations of EventListener so
// listeners only override what they care about.
type NopEventListener struct{}

func (NopEventListener) OnPlayerStatusUpdate(*World, *Player)              {}
func (NopEventListener) OnChatMsg(*World, *Player, string)                 {}
func (NopEventListener) OnPlayerDroppedFromServer(*World, *Player, string) {}
func (NopEventListener) OnLocalPlayerSpawned(*World, tf.PlayerClass)       {}
func (NopEventListener) OnLocalPlayerInitialized(*World, bool)             {}

// listenerSet is an insertion-deduplicated listener registry. Registration
// and removal are idempotent. Iteration always happens over a snapshot so
// listeners may add or remove listeners from within a callback.
type listenerSet[T comparable] struct {
	members map[T]struct{}
}

func newListenerSet[T comparable]() *listenerSet[T] {
	return &listenerSet[T]{members: make(map[T]struct{})}
}

func (s *listenerSet[T]) add(member T) {
	s.members[member] = struct{}{}
}

func (s *listenerSet[T]) remove(member T) {
	delete(s.members, member)
}

func (s *listenerSet[T]) snapshot() []T {
	snapshot := make([]T, 0, len(s.members))
	for member := range s.members {
		snapshot = append(snapshot, member)
	}

	return snapshot
}

func (w *World) AddConsoleLineListener(listener ConsoleLineListener) {
	w.consoleListeners.add(listener)
}

func (w *World) RemoveConsoleLineListener(listener ConsoleLineListener) {
	w.consoleListeners.remove(listener)
}

func (w *World) AddEventListener(listener EventListener) {
	w.eventListeners.add(listener)
}

func (w *World) RemoveEventListener(listener EventListener) {
	w.eventListeners.remove(listener)
}

func (w *World) forEachEventListener(fn func(listener EventListener)) {
	for _, listener := range w.eventListeners.snapshot() {
		fn(listener)
	}
}
