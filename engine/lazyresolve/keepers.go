package lazyresolve

import (
	"github.com/onflow/lazyres/model/decl"
	"github.com/onflow/lazyres/module/statekeeper"
)

// keeperFunc returns the keeper for one attempt of resolveWithKeeper.
type keeperFunc func(recompute bool) statekeeper.Keeper[*decl.Draft]

// draftKeeper applies a payload keeper to a draft and every related draft.
// Nested declarations are separate nodes with their own drafts and are not covered.
func draftKeeper(payload statekeeper.Keeper[*decl.Payload]) statekeeper.Keeper[*decl.Draft] {
	return statekeeper.New(func(b *statekeeper.Builder, d *decl.Draft) {
		statekeeper.Entity(b, d.Payload(), payload)
		for _, r := range d.AllRelated() {
			statekeeper.Entity(b, r.Payload(), payload)
		}
	})
}

func fixed(keeper statekeeper.Keeper[*decl.Draft]) keeperFunc {
	return func(bool) statekeeper.Keeper[*decl.Draft] { return keeper }
}

var importsKeeper = fixed(draftKeeper(statekeeper.New(func(b *statekeeper.Builder, p *decl.Payload) {
	statekeeper.AddCopied(b,
		func() []decl.Import { return p.Imports },
		func(v []decl.Import) { p.Imports = v },
		copySlice[decl.Import],
	)
})))

var superTypesKeeper = fixed(draftKeeper(statekeeper.New(func(b *statekeeper.Builder, p *decl.Payload) {
	statekeeper.AddCopied(b,
		func() []decl.TypeRef { return p.SuperTypes },
		func(v []decl.TypeRef) { p.SuperTypes = v },
		copySlice[decl.TypeRef],
	)
})))

// annotationsKeeper snapshots annotation types and every argument list that
// is not resolved yet. On the first attempt deferred argument lists are
// arranged into cheap placeholders; on a recompute they stay deferred and are
// computed precisely by the resolver.
func annotationsKeeper(bodies BodyCalculator) keeperFunc {
	return func(recompute bool) statekeeper.Keeper[*decl.Draft] {
		return draftKeeper(statekeeper.New(func(b *statekeeper.Builder, p *decl.Payload) {
			// element entries come first so they are restored after the slice itself
			for i := range p.Annotations {
				a := &p.Annotations[i]
				statekeeper.Add(b, func() decl.TypeRef { return a.Type }, func(v decl.TypeRef) { a.Type = v })

				get := func() decl.Lazy[[]decl.Argument] { return a.Arguments }
				set := func(v decl.Lazy[[]decl.Argument]) { a.Arguments = v }
				switch {
				case a.Arguments.IsDeferred() && !recompute:
					statekeeper.AddArranged(b, get, set, func(l decl.Lazy[[]decl.Argument]) decl.Lazy[[]decl.Argument] {
						return l.Compute(bodies.PlaceholderArguments(*a, l.Source()))
					})
				case !argumentsResolved(a.Arguments):
					statekeeper.AddCopied(b, get, set, copyArguments)
				}
			}
			statekeeper.Add(b,
				func() []decl.Annotation { return p.Annotations },
				func(v []decl.Annotation) { p.Annotations = v },
			)
		}))
	}
}

// bodyKeeper snapshots everything computed from bodies: the body itself, the
// initializer, parameter defaults and the return type inferred from them.
var bodyKeeper = fixed(draftKeeper(statekeeper.New(func(b *statekeeper.Builder, p *decl.Payload) {
	statekeeper.Add(b, func() decl.TypeRef { return p.ReturnType }, func(v decl.TypeRef) { p.ReturnType = v })
	if !bodyResolved(p.Body) {
		statekeeper.AddCopied(b,
			func() decl.Lazy[decl.Body] { return p.Body },
			func(v decl.Lazy[decl.Body]) { p.Body = v },
			func(l decl.Lazy[decl.Body]) decl.Lazy[decl.Body] { return l.Map(decl.Body.Clone) },
		)
	}
	statekeeper.AddCopied(b,
		func() decl.Lazy[decl.Expression] { return p.Initializer },
		func(v decl.Lazy[decl.Expression]) { p.Initializer = v },
		func(l decl.Lazy[decl.Expression]) decl.Lazy[decl.Expression] { return l.Map(decl.Expression.Clone) },
	)
	statekeeper.AddCopied(b,
		func() []decl.ValueParameter { return p.ValueParameters },
		func(v []decl.ValueParameter) { p.ValueParameters = v },
		copyParameters,
	)
})))

func copySlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

func copyArguments(l decl.Lazy[[]decl.Argument]) decl.Lazy[[]decl.Argument] {
	return l.Map(copySlice[decl.Argument])
}

func copyParameters(params []decl.ValueParameter) []decl.ValueParameter {
	if params == nil {
		return nil
	}
	c := make([]decl.ValueParameter, len(params))
	for i, vp := range params {
		vp.Default = vp.Default.Map(decl.Expression.Clone)
		c[i] = vp
	}
	return c
}

func argumentsResolved(l decl.Lazy[[]decl.Argument]) bool {
	if l.IsAbsent() {
		return true
	}
	args, ok := l.Value()
	if !ok {
		return false
	}
	for _, arg := range args {
		if !arg.Resolved || arg.Placeholder {
			return false
		}
	}
	return true
}

func hasPlaceholders(l decl.Lazy[[]decl.Argument]) bool {
	args, _ := l.Value()
	for _, arg := range args {
		if arg.Placeholder {
			return true
		}
	}
	return false
}

func bodyResolved(l decl.Lazy[decl.Body]) bool {
	body, ok := l.Value()
	return l.IsAbsent() || ok && body.Resolved
}
