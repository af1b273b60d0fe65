// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"sync"

	"github.com/jllopis/kairos-bdi/pkg/term"
)

// BeliefBase stores beliefs grouped by functor and arity. Groups are kept in
// insertion order.
type BeliefBase struct {
	mu     sync.RWMutex
	order  []term.Key
	groups map[term.Key][]*term.Term
}

// NewBeliefBase returns an empty belief base.
func NewBeliefBase() *BeliefBase {
	return &BeliefBase{groups: make(map[term.Key][]*term.Term)}
}

// Keys implements engine.BeliefView.
func (b *BeliefBase) Keys() []term.Key {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]term.Key(nil), b.order...)
}

// Lookup implements engine.BeliefView.
func (b *BeliefBase) Lookup(key term.Key) []*term.Term {
	b.mu.RLock()
	defer b.mu.RUnlock()
	group := b.groups[key]
	out := make([]*term.Term, len(group))
	for i, t := range group {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the total number of beliefs.
func (b *BeliefBase) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, group := range b.groups {
		n += len(group)
	}
	return n
}

// Add stores t. A belief with the same content only gains the new
// annotations. It reports whether the content was new.
func (b *BeliefBase) Add(t *term.Term) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := t.Key()
	group := b.groups[key]
	content := t.Display(false)
	for i, have := range group {
		if have.Display(false) == content {
			group[i] = have.MergeAnnotations(t)
			return false
		}
	}
	if _, ok := b.groups[key]; !ok {
		b.order = append(b.order, key)
	}
	b.groups[key] = append(group, t.Clone())
	return true
}

// Remove deletes every belief unifying with pattern and returns them.
func (b *BeliefBase) Remove(pattern *term.Term) []*term.Term {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := pattern.Key()
	group, ok := b.groups[key]
	if !ok {
		return nil
	}
	var removed []*term.Term
	kept := group[:0]
	for _, have := range group {
		if term.Unifies(pattern, have) {
			removed = append(removed, have)
			continue
		}
		kept = append(kept, have)
	}
	if len(kept) == 0 {
		b.dropKey(key)
	} else {
		b.groups[key] = kept
	}
	return removed
}

// RemoveGroup deletes the whole group of key and returns its beliefs.
func (b *BeliefBase) RemoveGroup(key term.Key) []*term.Term {
	b.mu.Lock()
	defer b.mu.Unlock()
	group := b.groups[key]
	if group != nil {
		b.dropKey(key)
	}
	return group
}

func (b *BeliefBase) dropKey(key term.Key) {
	delete(b.groups, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Query unifies pattern with the first matching belief, extending scope.
func (b *BeliefBase) Query(pattern *term.Term, scope term.Scope) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, have := range b.groups[pattern.Key()] {
		if term.Unify(pattern, have, scope) {
			return true
		}
	}
	return false
}
