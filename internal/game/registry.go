package game

import (
	"fmt"
	"sync"
)

// Registry manages the game catalog.
// Games are listed in registration order.
type Registry struct {
	games map[string]Game
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates a new game registry.
func NewRegistry() *Registry {
	return &Registry{
		games: make(map[string]Game),
	}
}

// Register adds a game to the registry.
// If a game with the same ID already exists, it is replaced in place.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	id := g.Info().ID
	if id == "" {
		return fmt.Errorf("game id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.games[id]; !exists {
		r.order = append(r.order, id)
	}
	r.games[id] = g
	return nil
}

// Get retrieves a game by its ID.
func (r *Registry) Get(id string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// List returns all registered games.
// The returned slice is a copy, so modifications won't affect the registry.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]Game, 0, len(r.order))
	for _, id := range r.order {
		games = append(games, r.games[id])
	}
	return games
}

// ByStatus returns the registered games with the given status.
func (r *Registry) ByStatus(status Status) []Game {
	var games []Game
	for _, g := range r.List() {
		if g.Info().Status == status {
			games = append(games, g)
		}
	}
	return games
}

// IDs returns all registered game IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Unregister removes a game from the registry by its ID.
// Returns true if the game was found and removed, false otherwise.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.games[id]; !ok {
		return false
	}
	delete(r.games, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}
