// SPDX-License-Identifier: Apache-2.0

package bdi

import "github.com/jllopis/kairos-bdi/pkg/term"

// Introspection takes the engine lock, so none of these may be called from
// a builtin action.

// FindByFunctor returns the first belief whose functor is functor, in the
// belief base's own order. Without includeOrigin the annotations are
// stripped.
func (b *Bridge) FindByFunctor(functor string, includeOrigin bool) (*term.Term, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.agent == nil {
		return nil, false
	}
	view := b.agent.Beliefs()
	for _, key := range view.Keys() {
		if key.Functor != functor {
			continue
		}
		beliefs := view.Lookup(key)
		if len(beliefs) == 0 {
			continue
		}
		if includeOrigin {
			return beliefs[0], true
		}
		return beliefs[0].WithoutAnnotations(), true
	}
	return nil, false
}

// FindBelief is FindByFunctor rendered for display.
func (b *Bridge) FindBelief(functor string, includeOrigin bool) (string, bool) {
	t, ok := b.FindByFunctor(functor, includeOrigin)
	if !ok {
		return "", false
	}
	return term.Render(t), true
}

// ValuesOf returns the arguments of the belief FindByFunctor selects, each
// rendered without quotes.
func (b *Bridge) ValuesOf(functor string) ([]string, bool) {
	t, ok := b.FindByFunctor(functor, false)
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.Args))
	for i, arg := range t.Args {
		out[i] = term.Unquoted(arg)
	}
	return out, true
}

// AllBeliefs renders every belief. Callers must not depend on the order.
func (b *Bridge) AllBeliefs(includeOrigin bool) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.agent == nil {
		return nil
	}
	view := b.agent.Beliefs()
	var out []string
	for _, key := range view.Keys() {
		for _, belief := range view.Lookup(key) {
			out = append(out, belief.Display(includeOrigin))
		}
	}
	return out
}
