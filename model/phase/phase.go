package phase

import (
	"fmt"
	"strings"
)

// Phase is one step of the ordered semantic enrichment a declaration goes
// through. The numeric order of the constants is the lattice order: a node at
// phase P is at least as resolved as a node at any phase Q <= P.
type Phase uint8

const (
	// Raw is the phase of a node as handed over by the declaration tree provider.
	Raw Phase = iota
	Imports
	SuperTypes
	AnnotationArguments
	ImplicitTypes
	Body
)

const (
	// First is the lowest phase a resolver exists for.
	First = Imports
	// Max is the fully resolved phase. Nodes at Max are never touched by automatic resolution again.
	Max = Body
	// Count is the number of phases including Raw.
	Count = int(Max) + 1
)

var names = [Count]string{
	Raw:                 "raw",
	Imports:             "imports",
	SuperTypes:          "super_types",
	AnnotationArguments: "annotation_arguments",
	ImplicitTypes:       "implicit_types",
	Body:                "body",
}

func (p Phase) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
	return names[p]
}

// IsValid returns true if p is a member of the lattice.
func (p Phase) IsValid() bool {
	return p <= Max
}

// AtLeast returns true if p is at least as resolved as other.
func (p Phase) AtLeast(other Phase) bool {
	return p >= other
}

// Next returns the phase directly after p. Max is its own successor.
func (p Phase) Next() Phase {
	if p >= Max {
		return Max
	}
	return p + 1
}

// Previous returns the phase directly before p. Raw is its own predecessor.
func (p Phase) Previous() Phase {
	if p == Raw {
		return Raw
	}
	return p - 1
}

// All returns the resolvable phases in lattice order.
func All() []Phase {
	all := make([]Phase, 0, Count-1)
	for p := First; p <= Max; p++ {
		all = append(all, p)
	}
	return all
}

// Parse converts the snake_case name of a phase back into a Phase.
func Parse(s string) (Phase, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for p, n := range names {
		if n == name {
			return Phase(p), nil
		}
	}
	return Raw, fmt.Errorf("unknown phase %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid phase %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
