package lazyresolve

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/onflow/lazyres/model/decl"
)

// BodyCalculator computes lazy fields from their source text.
type BodyCalculator interface {
	CalculateBody(node *decl.Node, source string) (decl.Body, error)
	CalculateExpression(node *decl.Node, source string) (decl.Expression, error)
	// CalculateArguments computes the precise argument list of an annotation call.
	CalculateArguments(node *decl.Node, annotation decl.Annotation, source string) ([]decl.Argument, error)
	// PlaceholderArguments returns a cheap approximation of the argument list,
	// with every argument marked as a placeholder.
	PlaceholderArguments(annotation decl.Annotation, source string) []decl.Argument
}

// TextBodies splits source text into statements, expressions and arguments.
// It understands parentheses, brackets, braces and double quoted strings,
// which is all the tree providers hand over.
type TextBodies struct{}

var _ BodyCalculator = TextBodies{}

func NewTextBodies() TextBodies {
	return TextBodies{}
}

func (TextBodies) CalculateBody(node *decl.Node, source string) (decl.Body, error) {
	parts, err := split(source, ";\n")
	if err != nil {
		return decl.Body{}, fmt.Errorf("body of %s: %w", node, err)
	}
	body := decl.Body{}
	for _, part := range parts {
		body.Statements = append(body.Statements, expression(part))
	}
	return body, nil
}

func (TextBodies) CalculateExpression(node *decl.Node, source string) (decl.Expression, error) {
	text := strings.TrimSpace(source)
	if text == "" {
		return decl.Expression{}, fmt.Errorf("empty expression in %s", node)
	}
	if _, err := split(text, ""); err != nil {
		return decl.Expression{}, fmt.Errorf("expression of %s: %w", node, err)
	}
	return expression(text), nil
}

func (TextBodies) CalculateArguments(node *decl.Node, annotation decl.Annotation, source string) ([]decl.Argument, error) {
	parts, err := split(source, ",")
	if err != nil {
		return nil, fmt.Errorf("arguments of @%s on %s: %w", annotation.Name, node, err)
	}
	args := make([]decl.Argument, 0, len(parts))
	for _, part := range parts {
		args = append(args, decl.Argument{Text: part, Type: decl.ImplicitType()})
	}
	return args, nil
}

func (TextBodies) PlaceholderArguments(_ decl.Annotation, source string) []decl.Argument {
	var args []decl.Argument
	for _, part := range strings.Split(source, ",") {
		if part = strings.TrimSpace(part); part != "" {
			args = append(args, decl.Argument{Text: part, Type: decl.ImplicitType(), Placeholder: true})
		}
	}
	return args
}

func expression(text string) decl.Expression {
	return decl.Expression{
		Text:       text,
		Type:       decl.ImplicitType(),
		References: References(text),
	}
}

// split cuts source at the separator characters that are not nested in
// brackets or strings. Empty pieces are dropped.
func split(source string, separators string) ([]string, error) {
	var (
		parts    []string
		stack    []rune
		inString bool
		escaped  bool
		start    int
	)
	closing := map[rune]rune{')': '(', ']': '[', '}': '{'}
	for i, r := range source {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"':
			inString = true
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, r)
		case closing[r] != 0:
			if len(stack) == 0 || stack[len(stack)-1] != closing[r] {
				return nil, fmt.Errorf("unbalanced %q at offset %d", r, i)
			}
			stack = stack[:len(stack)-1]
		case len(stack) == 0 && strings.ContainsRune(separators, r):
			if part := strings.TrimSpace(source[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string")
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	if part := strings.TrimSpace(source[start:]); part != "" {
		parts = append(parts, part)
	}
	return parts, nil
}

// References returns the identifiers used in text outside of string
// literals, in order of first use. Literal keywords are skipped.
func References(text string) []string {
	var (
		refs     []string
		seen     = make(map[string]struct{})
		inString bool
		escaped  bool
		ident    strings.Builder
	)
	flush := func() {
		if ident.Len() == 0 {
			return
		}
		name := ident.String()
		ident.Reset()
		if unicode.IsDigit(rune(name[0])) || isLiteralKeyword(name) {
			return
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			refs = append(refs, name)
		}
	}
	for _, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			ident.WriteRune(r)
			continue
		}
		flush()
		if r == '"' {
			inString = true
		}
	}
	flush()
	return refs
}

func isLiteralKeyword(name string) bool {
	switch name {
	case "true", "false", "null":
		return true
	}
	return false
}
