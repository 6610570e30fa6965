// Package gosource builds declaration trees from Go source files with tree-sitter.
//
// Struct and interface types become classes whose embedded types are their
// super types; other named types become type aliases. Struct fields become
// fields, methods become functions of their receiver, package level
// variables and constants become properties.
package gosource

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/onflow/lazyres/module/treeprovider"
)

// ParseFile describes the declarations of one Go source file.
func ParseFile(ctx context.Context, name string, source []byte) (treeprovider.File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return treeprovider.File{}, fmt.Errorf("could not parse %s: %w", name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return treeprovider.File{}, fmt.Errorf("%s has syntax errors", name)
	}

	p := fileParser{source: source}
	file := treeprovider.File{Name: name}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "import_declaration":
			descendants(n, "import_spec", func(spec *sitter.Node) {
				if path := spec.ChildByFieldName("path"); path != nil {
					file.Imports = append(file.Imports, strings.Trim(p.text(path), "\"`"))
				}
			})
		case "type_declaration":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if d, ok := p.typeSpec(n.NamedChild(j)); ok {
					file.Declarations = append(file.Declarations, d)
				}
			}
		case "function_declaration", "method_declaration":
			file.Declarations = append(file.Declarations, p.function(n))
		case "var_declaration":
			descendants(n, "var_spec", func(spec *sitter.Node) {
				file.Declarations = append(file.Declarations, p.valueSpec(spec)...)
			})
		case "const_declaration":
			descendants(n, "const_spec", func(spec *sitter.Node) {
				file.Declarations = append(file.Declarations, p.valueSpec(spec)...)
			})
		}
	}
	return file, nil
}

type fileParser struct {
	source []byte
}

func (p fileParser) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.source)
}

func (p fileParser) typeSpec(n *sitter.Node) (treeprovider.Declaration, bool) {
	name := p.text(n.ChildByFieldName("name"))
	typ := n.ChildByFieldName("type")
	if name == "" || typ == nil {
		return treeprovider.Declaration{}, false
	}
	if n.Type() == "type_alias" {
		return treeprovider.Declaration{Kind: "type-alias", Name: name, SuperTypes: []string{p.text(typ)}}, true
	}
	if n.Type() != "type_spec" {
		return treeprovider.Declaration{}, false
	}

	d := treeprovider.Declaration{Kind: "class", Name: name}
	switch typ.Type() {
	case "struct_type":
		descendants(typ, "field_declaration", func(field *sitter.Node) {
			fieldType := p.text(field.ChildByFieldName("type"))
			names := namedChildren(field, "field_identifier")
			if len(names) == 0 {
				d.SuperTypes = append(d.SuperTypes, baseTypeName(fieldType))
				return
			}
			for _, fn := range names {
				d.Members = append(d.Members, treeprovider.Declaration{Kind: "field", Name: p.text(fn), Type: fieldType})
			}
		})
	case "interface_type":
		for i := 0; i < int(typ.NamedChildCount()); i++ {
			elem := typ.NamedChild(i)
			if elem.Type() == "type_elem" || elem.Type() == "constraint_elem" {
				d.SuperTypes = append(d.SuperTypes, baseTypeName(p.text(elem)))
			}
		}
	default:
		d.Kind = "type-alias"
		d.SuperTypes = []string{p.text(typ)}
	}
	return d, true
}

func (p fileParser) function(n *sitter.Node) treeprovider.Declaration {
	d := treeprovider.Declaration{
		Kind: "function",
		Name: p.text(n.ChildByFieldName("name")),
		Type: "Unit",
	}
	if result := n.ChildByFieldName("result"); result != nil {
		d.Type = p.text(result)
	}
	if receiver := n.ChildByFieldName("receiver"); receiver != nil {
		descendants(receiver, "parameter_declaration", func(param *sitter.Node) {
			d.Receiver = baseTypeName(p.text(param.ChildByFieldName("type")))
		})
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			param := params.NamedChild(i)
			if param.Type() != "parameter_declaration" && param.Type() != "variadic_parameter_declaration" {
				continue
			}
			paramType := p.text(param.ChildByFieldName("type"))
			names := namedChildren(param, "identifier")
			if len(names) == 0 {
				d.Parameters = append(d.Parameters, treeprovider.Parameter{Name: fmt.Sprintf("_%d", i), Type: paramType})
			}
			for _, pn := range names {
				d.Parameters = append(d.Parameters, treeprovider.Parameter{Name: p.text(pn), Type: paramType})
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		d.Body = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(p.text(body), "{"), "}"))
	}
	return d
}

// valueSpec describes every name of a var or const spec as a property.
// Names without a declared type are inferred from their value.
func (p fileParser) valueSpec(n *sitter.Node) []treeprovider.Declaration {
	typ := p.text(n.ChildByFieldName("type"))
	var values []*sitter.Node
	if list := n.ChildByFieldName("value"); list != nil {
		for i := 0; i < int(list.NamedChildCount()); i++ {
			values = append(values, list.NamedChild(i))
		}
	}
	var decls []treeprovider.Declaration
	for i, name := range namedChildren(n, "identifier") {
		d := treeprovider.Declaration{Kind: "property", Name: p.text(name), Type: typ}
		if i < len(values) {
			d.Initializer = p.text(values[i])
		}
		if d.Name != "_" {
			decls = append(decls, d)
		}
	}
	return decls
}

// descendants calls fn for every descendant of n of the given type, without
// looking into matches.
func descendants(n *sitter.Node, typ string, fn func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == typ {
			fn(child)
			continue
		}
		descendants(child, typ, fn)
	}
}

func namedChildren(n *sitter.Node, typ string) []*sitter.Node {
	var children []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			children = append(children, child)
		}
	}
	return children
}

// baseTypeName strips pointers, packages and type arguments from a type.
func baseTypeName(t string) string {
	t = strings.TrimLeft(strings.TrimSpace(t), "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t
}
