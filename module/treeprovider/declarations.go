package treeprovider

import (
	"fmt"
	"strings"

	"github.com/onflow/lazyres/model/decl"
)

// File describes a source file of a module.
type File struct {
	Name            string        `yaml:"name"`
	Imports         []string      `yaml:"imports"`
	FileAnnotations []Annotation  `yaml:"file-annotations"`
	Declarations    []Declaration `yaml:"declarations"`
}

// Script describes a script. Its statements must be functions or properties.
type Script struct {
	Name       string        `yaml:"name"`
	Imports    []string      `yaml:"imports"`
	Statements []Declaration `yaml:"statements"`
}

type Annotation struct {
	Name      string   `yaml:"name"`
	Arguments []string `yaml:"arguments"`
}

type Parameter struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Default string `yaml:"default"`
}

type Accessor struct {
	Body string `yaml:"body"`
}

// Declaration describes a class, type alias, function, property or field.
// An empty Type of a callable is inferred.
type Declaration struct {
	Kind         string        `yaml:"kind"`
	Name         string        `yaml:"name"`
	Type         string        `yaml:"type"`
	SuperTypes   []string      `yaml:"supertypes"`
	Annotations  []Annotation  `yaml:"annotations"`
	Parameters   []Parameter   `yaml:"parameters"`
	Initializer  string        `yaml:"initializer"`
	Body         string        `yaml:"body"`
	Getter       *Accessor     `yaml:"getter"`
	Setter       *Accessor     `yaml:"setter"`
	BackingField bool          `yaml:"backing-field"`
	Members      []Declaration `yaml:"members"`
	// Receiver names the class a function is declared for outside of the
	// class body. Without such a class in the module it is a top-level function.
	Receiver string `yaml:"receiver"`
}

// Build creates the declaration tree of module from the described sources.
func Build(module string, files []File, scripts []Script) (*decl.Arena, error) {
	b := decl.NewBuilder(module)
	classes := make(map[string]decl.NodeID)
	type detached struct {
		file decl.NodeID
		d    Declaration
	}
	var receivers []detached

	var add func(parent decl.NodeID, d Declaration) error
	add = func(parent decl.NodeID, d Declaration) error {
		kind, err := parseKind(d.Kind)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		opts := options(d)
		switch kind {
		case decl.KindClass:
			id := b.Class(parent, d.Name, opts...)
			classes[d.Name] = id
			for _, member := range d.Members {
				if err := add(id, member); err != nil {
					return err
				}
			}
		case decl.KindTypeAlias:
			b.TypeAlias(parent, d.Name, opts...)
		case decl.KindFunction:
			b.Function(parent, d.Name, opts...)
		case decl.KindProperty:
			b.Property(parent, d.Name, opts...)
		case decl.KindField:
			b.Field(parent, d.Name, opts...)
		default:
			return fmt.Errorf("%s cannot be declared as %s", d.Name, kind)
		}
		return nil
	}

	for _, f := range files {
		file := b.File(f.Name, decl.WithImports(f.Imports...))
		if len(f.FileAnnotations) > 0 {
			var opts []decl.Option
			for _, a := range f.FileAnnotations {
				opts = append(opts, decl.WithAnnotation(a.Name, a.Arguments...))
			}
			b.FileAnnotations(file, opts...)
		}
		for _, d := range f.Declarations {
			if d.Receiver != "" {
				receivers = append(receivers, detached{file: file, d: d})
				continue
			}
			if err := add(file, d); err != nil {
				return nil, fmt.Errorf("file %s: %w", f.Name, err)
			}
		}
	}
	for _, r := range receivers {
		parent := r.file
		if class, ok := classes[r.d.Receiver]; ok {
			parent = class
		}
		if err := add(parent, r.d); err != nil {
			return nil, err
		}
	}

	for _, s := range scripts {
		script := b.Script(s.Name, decl.WithImports(s.Imports...))
		for _, d := range s.Statements {
			kind, err := parseKind(d.Kind)
			if err != nil {
				return nil, fmt.Errorf("script %s: %s: %w", s.Name, d.Name, err)
			}
			b.ScriptStatement(script, kind, d.Name, options(d)...)
		}
	}
	return b.Build()
}

func parseKind(s string) (decl.Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if name == "typealias" {
		name = "type_alias"
	}
	return decl.ParseKind(name)
}

func options(d Declaration) []decl.Option {
	opts := []decl.Option{decl.WithReturnType(d.Type)}
	if len(d.SuperTypes) > 0 {
		opts = append(opts, decl.WithSuperTypes(d.SuperTypes...))
	}
	for _, a := range d.Annotations {
		opts = append(opts, decl.WithAnnotation(a.Name, a.Arguments...))
	}
	for _, p := range d.Parameters {
		opts = append(opts, decl.WithParameter(p.Name, p.Type, p.Default))
	}
	if d.Initializer != "" {
		opts = append(opts, decl.WithInitializer(d.Initializer))
	}
	if d.Body != "" {
		opts = append(opts, decl.WithBody(d.Body))
	}
	if d.Getter != nil {
		opts = append(opts, decl.WithGetter(d.Getter.Body))
	}
	if d.Setter != nil {
		opts = append(opts, decl.WithSetter(d.Setter.Body))
	}
	if d.BackingField {
		opts = append(opts, decl.WithBackingField())
	}
	return opts
}
