// Package rules defines the Game capability set: the set of pure
// functions any implemented game must provide so the Turn Executor can
// validate and apply actions without knowing anything about a specific
// game's board or win conditions.
package rules

import "fmt"

// Status describes whether a match may still be advanced, and if so by
// whom.
type Status struct {
	Over       bool
	NextPlayer int  // valid only if !Over
	HasWinner  bool // valid only if Over
	Winner     int  // valid only if Over && HasWinner
}

// RuleError is returned by ApplyAction when an action is illegal. Kind
// distinguishes the reason so callers (and the Executor's InvalidAction
// detail) don't have to string-match.
type RuleError struct {
	Kind  string
	Index int
}

func (e *RuleError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s: %d", e.Kind, e.Index)
	}
	return e.Kind
}

const (
	KindUnknownColumn = "unknown_column"
	KindFullColumn    = "full_column"
	KindOutOfRange    = "out_of_range"
)

// Game is the capability set a game implementation exposes. State and
// Action are game-specific JSON-serializable payloads; the Executor and
// Store treat them as opaque []byte outside of this package.
type Game interface {
	// Tag identifies the game, e.g. "connect4".
	Tag() string
	// InitialState returns the state of a freshly created match before
	// any action has been applied.
	InitialState() []byte
	// Status computes whether the match is over and, if not, whose turn
	// is next.
	Status(state []byte) (Status, error)
	// ValidAction reports whether action is legal against state.
	ValidAction(state []byte, action []byte) bool
	// ApplyAction applies action to state, returning the new state. It
	// must not mutate the input on failure; on success, the caller is
	// responsible for recomputing Status against the returned state.
	ApplyAction(state []byte, action []byte) ([]byte, error)
}

// Registry maps a game tag to its implementation, so adding a game
// requires only a new Game implementation and a registration call — no
// change to the Store, Executor, or Driver.
type Registry struct {
	games map[string]Game
}

// NewRegistry builds a registry from the given games.
func NewRegistry(games ...Game) *Registry {
	r := &Registry{games: make(map[string]Game, len(games))}
	for _, g := range games {
		r.games[g.Tag()] = g
	}
	return r
}

// Lookup returns the Game registered under tag, or false if none is.
func (r *Registry) Lookup(tag string) (Game, bool) {
	g, ok := r.games[tag]
	return g, ok
}
