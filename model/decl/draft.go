package decl

import (
	"fmt"

	"github.com/onflow/lazyres/model/phase"
)

// Draft is the working copy of a node's payload during one resolution
// attempt. Nothing written to a draft is visible to readers until Publish.
// Dropping a draft discards the attempt.
type Draft struct {
	node    *Node
	payload *Payload
	related []*Draft
}

func (d *Draft) Node() *Node { return d.node }

// Payload returns the mutable payload of the draft.
func (d *Draft) Payload() *Payload { return d.payload }

// Related returns the draft of a node owned, directly or through other parts,
// by the draft's node, creating it on first use. It returns nil if part is
// not owned by the draft's node.
func (d *Draft) Related(part *Node) *Draft {
	if part == nil || part.arena != d.node.arena || !part.ownedBy(d.node) {
		return nil
	}
	if part.owner != d.node.id {
		// parts of parts are drafted by their direct owner
		return d.Related(part.Owner()).Related(part)
	}
	for _, r := range d.related {
		if r.node == part {
			return r
		}
	}
	r := part.NewDraft()
	d.related = append(d.related, r)
	return r
}

// RelatedDrafts returns the drafts of the direct parts created through Related, in creation order.
func (d *Draft) RelatedDrafts() []*Draft {
	return d.related
}

// AllRelated returns the related drafts of d and, recursively, of its related drafts.
func (d *Draft) AllRelated() []*Draft {
	var all []*Draft
	for _, r := range d.related {
		all = append(all, r)
		all = append(all, r.AllRelated()...)
	}
	return all
}

// RelateParts creates the drafts of every part of the node, recursively, and
// returns AllRelated.
func (d *Draft) RelateParts() []*Draft {
	for _, part := range d.node.AllParts() {
		d.Related(part)
	}
	return d.AllRelated()
}

// Find returns the draft of n if it is d or one of its related drafts, without creating one.
func (d *Draft) Find(n *Node) *Draft {
	if d.node == n {
		return d
	}
	for _, r := range d.related {
		if found := r.Find(n); found != nil {
			return found
		}
	}
	return nil
}

// Publish makes the draft visible: every payload first, then the phase of
// every part of the owner, recursively, and the owner's phase last. Readers
// checking the owner's phase see the payloads of all its parts.
// The caller must hold the advance lock of the draft's node.
// Publish either fails before publishing anything or publishes everything.
func (d *Draft) Publish(p phase.Phase) error {
	if !p.IsValid() {
		return fmt.Errorf("publish %s at invalid %s", d.node, p)
	}
	parts := d.node.AllParts()
	for _, n := range append([]*Node{d.node}, parts...) {
		if current := n.Phase(); current > p {
			return fmt.Errorf("publish %s at %s while at %s: %w", n, p, current, ErrPhaseRegression)
		}
	}

	for _, part := range parts {
		if r := d.Find(part); r != nil {
			part.payload.Store(r.payload)
		}
	}
	d.node.payload.Store(d.payload)
	for _, part := range parts {
		// checked above, only a writer bypassing the lock fails here
		if err := part.advance(p); err != nil {
			return err
		}
	}
	return d.node.advance(p)
}

// AdvanceOnly moves the phase marker of an exempt node and its parts without
// touching any payload. The caller must hold the advance lock of the node.
func (n *Node) AdvanceOnly(p phase.Phase) error {
	return n.NewDraft().Publish(p)
}
