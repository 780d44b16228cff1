package game

import (
	"fmt"
	"sort"
	"sync"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
)

// Registry maps game-type tags to their matching rules.
// It is safe for concurrent use.
type Registry struct {
	rules map[model.GameType]Rule
	mu    sync.RWMutex
}

// NewRegistry creates a new rule registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[model.GameType]Rule),
	}
}

// Register adds a rule to the registry. A game type can be registered once.
func (r *Registry) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("cannot register nil rule")
	}
	if rule.Type() == "" {
		return fmt.Errorf("rule game type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.Type()]; ok {
		return fmt.Errorf("rule for game type %q already registered", rule.Type())
	}
	r.rules[rule.Type()] = rule
	return nil
}

// MustRegister is Register for static wiring.
func (r *Registry) MustRegister(rules ...Rule) *Registry {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
	return r
}

// Get retrieves the rule for a game type.
func (r *Registry) Get(gameType model.GameType) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[gameType]
	return rule, ok
}

// Types returns all registered game types in sorted order.
func (r *Registry) Types() []model.GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.GameType, 0, len(r.rules))
	for t := range r.rules {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
