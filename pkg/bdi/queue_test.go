// SPDX-License-Identifier: Apache-2.0

package bdi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/kairos-bdi/pkg/engine"
	"github.com/jllopis/kairos-bdi/pkg/term"
)

func add(functor string) Mutation {
	return Mutation{Trigger: engine.Addition, Goal: engine.Belief, Term: term.Atom(functor)}
}

func TestQueueIsFIFO(t *testing.T) {
	q := NewQueue()
	_, ok := q.Peek()
	assert.False(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok)

	q.Enqueue(add("a"), add("b"))
	q.Enqueue(add("c"))
	q.Enqueue()
	require.Equal(t, 3, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "+a", head.String())
	assert.Equal(t, 3, q.Len(), "peek does not remove")

	var order []string
	for q.Len() > 0 {
		m, _ := q.Pop()
		order = append(order, m.String())
	}
	assert.Equal(t, []string{"+a", "+b", "+c"}, order)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(add("x"))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}

func TestForceKindString(t *testing.T) {
	cases := map[ForceKind]string{
		ForceTell:    "tell",
		ForceUntell:  "untell",
		ForceAchieve: "achieve",
		ForceCustom:  "custom",
		ForceUnknown: "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
