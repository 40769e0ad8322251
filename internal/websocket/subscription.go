package websocket

import (
	"fmt"
	"strings"
	"sync"
)

var knownEntities = map[EntityType]bool{
	EntityTypeLoan:     true,
	EntityTypePayment:  true,
	EntityTypeInvoice:  true,
	EntityTypeCustomer: true,
}

// ParseEntities reads a comma separated entity list such as "loan,payment".
// An empty list subscribes to everything.
func ParseEntities(raw string) ([]EntityType, error) {
	var out []EntityType
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		entity := EntityType(name)
		if !knownEntities[entity] {
			return nil, fmt.Errorf("unknown entity %q", name)
		}
		out = append(out, entity)
	}
	return out, nil
}

// subscription is the set of entities a connection listens to. The zero
// value listens to every entity.
type subscription struct {
	mu       sync.RWMutex
	entities map[EntityType]bool
}

func newSubscription(entities []EntityType) *subscription {
	s := &subscription{}
	s.add(entities)
	return s
}

func (s *subscription) wants(entity EntityType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities) == 0 || s.entities[entity]
}

func (s *subscription) add(entities []EntityType) {
	if len(entities) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entities == nil {
		s.entities = make(map[EntityType]bool, len(entities))
	}
	for _, e := range entities {
		s.entities[e] = true
	}
}

// remove drops entities; removing the last one falls back to everything
func (s *subscription) remove(entities []EntityType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		delete(s.entities, e)
	}
}

func (s *subscription) list() []EntityType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EntityType, 0, len(s.entities))
	for _, e := range []EntityType{EntityTypeLoan, EntityTypePayment, EntityTypeInvoice, EntityTypeCustomer} {
		if s.entities[e] {
			out = append(out, e)
		}
	}
	return out
}
