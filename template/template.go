package template

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/csakilan/FoundryBackend/errors"
)

// FormatVersion is the provisioning document schema revision emitted in
// every document.
const FormatVersion = "2010-09-09"

// Parameter declares one typed input slot of the document.
type Parameter struct {
	Type        string `json:"Type"`
	Description string `json:"Description,omitempty"`
	Default     string `json:"Default,omitempty"`
}

// Resource declares one provisioned resource: its provider type and the
// full property bag the synthesizers assembled.
type Resource struct {
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty"`
}

// Output is one named value the engine reports back after applying the
// document.
type Output struct {
	Name        string
	Description string
	Value       any
}

// Document is the compiler's sole artifact: parameters, resources and
// outputs in insertion order, serialized to the provisioning engine's
// JSON schema. Mutation happens only during assembly; the assembler
// hands the finished document downstream as an opaque value.
type Document struct {
	Description string
	Metadata    map[string]any

	paramNames    []string
	params        map[string]Parameter
	resourceNames []string
	resources     map[string]*Resource
	outputNames   []string
	outputs       map[string]Output
}

// New creates an empty document with the given description.
func New(description string) *Document {
	return &Document{
		Description: description,
		params:      make(map[string]Parameter),
		resources:   make(map[string]*Resource),
		outputs:     make(map[string]Output),
	}
}

// AddParameter declares a parameter. Redeclaring a name is a
// programming error and is rejected.
func (d *Document) AddParameter(name string, p Parameter) error {
	if _, exists := d.params[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("parameter %s already declared", name),
			"template", "AddParameter", "declare parameter")
	}
	d.paramNames = append(d.paramNames, name)
	d.params[name] = p
	return nil
}

// AddResource registers a resource under its logical id. Logical ids
// are unique within one document.
func (d *Document) AddResource(logicalID string, r *Resource) error {
	if _, exists := d.resources[logicalID]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("resource %s already declared", logicalID),
			"template", "AddResource", "declare resource")
	}
	d.resourceNames = append(d.resourceNames, logicalID)
	d.resources[logicalID] = r
	return nil
}

// AddOutput appends one output declaration.
func (d *Document) AddOutput(o Output) error {
	if _, exists := d.outputs[o.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("output %s already declared", o.Name),
			"template", "AddOutput", "declare output")
	}
	d.outputNames = append(d.outputNames, o.Name)
	d.outputs[o.Name] = o
	return nil
}

// AddOutputs appends outputs in order, stopping on the first error.
func (d *Document) AddOutputs(outs []Output) error {
	for _, o := range outs {
		if err := d.AddOutput(o); err != nil {
			return err
		}
	}
	return nil
}

// Parameter returns a declared parameter by name.
func (d *Document) Parameter(name string) (Parameter, bool) {
	p, ok := d.params[name]
	return p, ok
}

// HasParameter reports whether a parameter name is declared.
func (d *Document) HasParameter(name string) bool {
	_, ok := d.params[name]
	return ok
}

// ParameterNames returns parameter names in declaration order.
func (d *Document) ParameterNames() []string {
	return append([]string(nil), d.paramNames...)
}

// Resource returns a registered resource by logical id.
func (d *Document) Resource(logicalID string) (*Resource, bool) {
	r, ok := d.resources[logicalID]
	return r, ok
}

// ResourceNames returns logical ids in declaration order.
func (d *Document) ResourceNames() []string {
	return append([]string(nil), d.resourceNames...)
}

// ResourceCount returns the number of declared resources.
func (d *Document) ResourceCount() int {
	return len(d.resourceNames)
}

// Output returns a declared output by name.
func (d *Document) Output(name string) (Output, bool) {
	o, ok := d.outputs[name]
	return o, ok
}

// OutputNames returns output names in declaration order.
func (d *Document) OutputNames() []string {
	return append([]string(nil), d.outputNames...)
}

// MarshalJSON renders the engine schema with sections and section
// members in declaration order. Order is not semantically significant
// to the engine but keeps the artifact byte-stable across compiles,
// which the deployment pipeline diffs against stored generations.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	if err := writeMember(&buf, "AWSTemplateFormatVersion", FormatVersion, true); err != nil {
		return nil, err
	}
	if d.Description != "" {
		if err := writeMember(&buf, "Description", d.Description, false); err != nil {
			return nil, err
		}
	}
	if len(d.Metadata) > 0 {
		if err := writeMember(&buf, "Metadata", d.Metadata, false); err != nil {
			return nil, err
		}
	}

	if len(d.paramNames) > 0 {
		buf.WriteString(`,"Parameters":`)
		if err := writeOrderedObject(&buf, d.paramNames, func(name string) any { return d.params[name] }); err != nil {
			return nil, err
		}
	}

	buf.WriteString(`,"Resources":`)
	if err := writeOrderedObject(&buf, d.resourceNames, func(name string) any { return d.resources[name] }); err != nil {
		return nil, err
	}

	if len(d.outputNames) > 0 {
		buf.WriteString(`,"Outputs":`)
		if err := writeOrderedObject(&buf, d.outputNames, func(name string) any {
			o := d.outputs[name]
			out := map[string]any{"Value": o.Value}
			if o.Description != "" {
				out["Description"] = o.Description
			}
			return out
		}); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON renders the document indented for storage and for the engine
// call.
func (d *Document) JSON() ([]byte, error) {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, errors.WrapInvalid(err, "template", "JSON", "render document")
	}
	return raw, nil
}

func writeMember(buf *bytes.Buffer, name string, v any, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(val)
	return nil
}

func writeOrderedObject(buf *bytes.Buffer, names []string, value func(string) any) error {
	buf.WriteByte('{')
	for i, name := range names {
		if err := writeMember(buf, name, value(name), i == 0); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
