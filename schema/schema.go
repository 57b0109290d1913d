// Package schema declares tool parameter shapes and validates raw call
// arguments against them.
package schema

import (
	"fmt"

	"github.com/slighter12/appservice-mcp-go/mcp"
)

// Kind is the primitive type accepted for a parameter.
type Kind string

const (
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Param describes one named tool parameter. Params are values; the builder
// methods return modified copies.
type Param struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
	Enum        []string
}

// String declares a required string parameter.
func String(name string) Param {
	return Param{Name: name, Kind: KindString, Required: true}
}

// Enum declares a required parameter restricted to the given values.
func Enum(name string, values ...string) Param {
	return Param{Name: name, Kind: KindEnum, Required: true, Enum: append([]string(nil), values...)}
}

// Number declares a required numeric parameter.
func Number(name string) Param {
	return Param{Name: name, Kind: KindNumber, Required: true}
}

// Boolean declares a required boolean parameter.
func Boolean(name string) Param {
	return Param{Name: name, Kind: KindBoolean, Required: true}
}

// Describe sets the human-readable description.
func (p Param) Describe(description string) Param {
	p.Description = description
	return p
}

// Optional marks the parameter as not required.
func (p Param) Optional() Param {
	p.Required = false
	return p
}

// Descriptor is the ordered set of parameters a tool accepts. It is pure
// data: the zero value accepts any arguments and declares nothing.
type Descriptor struct {
	params  []Param
	allowed map[string]map[string]struct{}
}

// New builds a Descriptor. Parameter names must be unique and every enum
// must allow at least one value.
func New(params ...Param) (*Descriptor, error) {
	d := &Descriptor{
		params:  make([]Param, 0, len(params)),
		allowed: make(map[string]map[string]struct{}),
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("schema: parameter name cannot be empty")
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate parameter %q", p.Name)
		}
		seen[p.Name] = struct{}{}

		switch p.Kind {
		case KindString, KindNumber, KindBoolean:
		case KindEnum:
			if len(p.Enum) == 0 {
				return nil, fmt.Errorf("schema: enum parameter %q has no allowed values", p.Name)
			}
			set := make(map[string]struct{}, len(p.Enum))
			for _, v := range p.Enum {
				set[v] = struct{}{}
			}
			d.allowed[p.Name] = set
		default:
			return nil, fmt.Errorf("schema: parameter %q has unknown kind %q", p.Name, p.Kind)
		}

		p.Enum = append([]string(nil), p.Enum...)
		d.params = append(d.params, p)
	}
	return d, nil
}

// MustNew is like New but panics on an invalid declaration. Meant for
// package-level tool tables built at startup.
func MustNew(params ...Param) *Descriptor {
	d, err := New(params...)
	if err != nil {
		panic(err)
	}
	return d
}

// Params returns a copy of the declared parameters in declaration order.
func (d *Descriptor) Params() []Param {
	if d == nil {
		return nil
	}
	out := make([]Param, len(d.params))
	copy(out, d.params)
	return out
}

// Len returns the number of declared parameters.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.params)
}

func (d *Descriptor) allows(name, value string) bool {
	_, ok := d.allowed[name][value]
	return ok
}

// InputSchema renders the descriptor as the JSON schema object advertised
// in tools/list.
func (d *Descriptor) InputSchema(title string) mcp.InputSchema {
	out := mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{},
		Required:   []string{},
		Title:      title,
	}
	if d == nil {
		return out
	}
	for _, p := range d.params {
		prop := map[string]any{}
		switch p.Kind {
		case KindEnum:
			prop["type"] = "string"
			prop["enum"] = append([]string(nil), p.Enum...)
		default:
			prop["type"] = string(p.Kind)
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		out.Properties[p.Name] = prop
		if p.Required {
			out.Required = append(out.Required, p.Name)
		}
	}
	return out
}
