package statekeeper_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/lazyres/module/statekeeper"
)

type argument struct {
	Text     string
	Resolved bool
}

type call struct {
	Name      string
	Arguments []argument
	Resolved  bool
}

type function struct {
	Name       string
	ReturnType string
	Body       []string
	Calls      []*call
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneArguments(a []argument) []argument {
	if a == nil {
		return nil
	}
	return append([]argument(nil), a...)
}

var callKeeper = statekeeper.New(func(b *statekeeper.Builder, c *call) {
	statekeeper.Add(b, func() bool { return c.Resolved }, func(v bool) { c.Resolved = v })
	// resolved argument lists are stable and need no snapshot
	statekeeper.AddIf(b, !c.Resolved,
		func() []argument { return cloneArguments(c.Arguments) },
		func(v []argument) { c.Arguments = cloneArguments(v) },
	)
})

var functionKeeper = statekeeper.New(func(b *statekeeper.Builder, f *function) {
	statekeeper.Add(b, func() string { return f.ReturnType }, func(v string) { f.ReturnType = v })
	statekeeper.AddCopied(b, func() []string { return f.Body }, func(v []string) { f.Body = v }, cloneStrings)
	statekeeper.EntityList(b, f.Calls, callKeeper)
})

func TestRestoreAfterMutation(t *testing.T) {
	f := &function{
		Name:       "f",
		ReturnType: "",
		Body:       []string{"a()", "b()"},
		Calls: []*call{
			{Name: "a", Arguments: []argument{{Text: "1"}}},
			{Name: "b", Arguments: []argument{{Text: "2", Resolved: true}}, Resolved: true},
		},
	}
	before := deepCopy(f)

	snapshot := functionKeeper.Prepare(f)
	// return type, body, a.Resolved, a.Arguments, b.Resolved
	assert.Equal(t, 5, snapshot.Len())

	f.ReturnType = "Int"
	f.Body[0] = "changed()"
	f.Body = append(f.Body, "c()")
	f.Calls[0].Resolved = true
	f.Calls[0].Arguments[0].Resolved = true

	snapshot.Restore()
	assert.True(t, cmp.Equal(before, f), cmp.Diff(before, f))

	// restoring copies, so a second restore after more mutation still works
	f.Body[1] = "again()"
	snapshot.Restore()
	assert.True(t, cmp.Equal(before, f), cmp.Diff(before, f))
}

func TestArranged(t *testing.T) {
	c := &call{Name: "a", Arguments: nil}
	keeper := statekeeper.New(func(b *statekeeper.Builder, c *call) {
		statekeeper.AddArranged(b,
			func() []argument { return c.Arguments },
			func(v []argument) { c.Arguments = v },
			func(old []argument) []argument { return []argument{{Text: "<placeholder>"}} },
		)
	})

	snapshot := keeper.Prepare(c)
	require.Len(t, c.Arguments, 1)
	assert.Equal(t, "<placeholder>", c.Arguments[0].Text)

	snapshot.Restore()
	assert.Nil(t, c.Arguments)
}

func TestRestoreOrder(t *testing.T) {
	value := 0
	keeper := statekeeper.New(func(b *statekeeper.Builder, v *int) {
		statekeeper.AddArranged(b, func() int { return *v }, func(n int) { *v = n }, func(n int) int { return n + 1 })
		statekeeper.AddArranged(b, func() int { return *v }, func(n int) { *v = n }, func(n int) int { return n + 10 })
	})
	snapshot := keeper.Prepare(&value)
	assert.Equal(t, 11, value)
	// the first capture is restored last and wins
	snapshot.Restore()
	assert.Equal(t, 0, value)
}

func TestEmptyKeeper(t *testing.T) {
	var keeper statekeeper.Keeper[*function]
	snapshot := keeper.Prepare(&function{})
	assert.Equal(t, 0, snapshot.Len())
	snapshot.Restore()
}

// Preparing and immediately restoring leaves the owner deeply equal to its previous state.
func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := &function{
			Name:       rapid.String().Draw(t, "name"),
			ReturnType: rapid.String().Draw(t, "returnType"),
			Body:       rapid.SliceOf(rapid.String()).Draw(t, "body"),
		}
		calls := rapid.IntRange(0, 4).Draw(t, "calls")
		for i := 0; i < calls; i++ {
			c := &call{
				Name:     rapid.String().Draw(t, "callName"),
				Resolved: rapid.Bool().Draw(t, "resolved"),
			}
			args := rapid.IntRange(0, 3).Draw(t, "args")
			for j := 0; j < args; j++ {
				c.Arguments = append(c.Arguments, argument{
					Text:     rapid.String().Draw(t, "text"),
					Resolved: rapid.Bool().Draw(t, "argResolved"),
				})
			}
			f.Calls = append(f.Calls, c)
		}
		before := deepCopy(f)

		functionKeeper.Prepare(f).Restore()

		if !cmp.Equal(before, f) {
			t.Fatalf("round trip changed state: %s", cmp.Diff(before, f))
		}
	})
}

func deepCopy(f *function) *function {
	c := &function{Name: f.Name, ReturnType: f.ReturnType, Body: cloneStrings(f.Body)}
	for _, fc := range f.Calls {
		c.Calls = append(c.Calls, &call{Name: fc.Name, Resolved: fc.Resolved, Arguments: cloneArguments(fc.Arguments)})
	}
	return c
}
