package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/modeltree"
)

// describeSchema renders a reconstructed model tree as an OpenAPI-style
// JSON Schema document (SPEC_FULL.md's SUPPLEMENTED FEATURES §describe
// subcommand): each root-level accessProp becomes a schema property,
// call/new result types become a synthetic "$return" property, and
// primitive-literal tags become const/enum schema facets. This is the
// same *oas3.Schema construction style the teacher's own symbolic
// execution engine uses for its output values, aimed here at describing
// an observed API surface instead of an executed jq transform's result.
func describeSchema(root *modeltree.Node) *oas3.Schema {
	return nodeToSchema(root, map[*modeltree.Node]bool{})
}

func nodeToSchema(n *modeltree.Node, seen map[*modeltree.Node]bool) *oas3.Schema {
	if n == nil {
		return &oas3.Schema{}
	}
	if seen[n] {
		// The model tree's child maps form a tree (ρ-relations are kept in
		// SinkToSource, not as children), so this is only a guard: a node
		// already being described is never described again inside itself.
		return &oas3.Schema{}
	}
	seen[n] = true
	defer delete(seen, n)

	if !n.HasType {
		return &oas3.Schema{}
	}
	t := n.Type

	if t.IsLiteral() {
		switch t.Prim {
		case "string":
			return constString(t.Value.(string))
		case "number":
			return constNumber(t.Value.(float64))
		case "boolean":
			return constBool(t.Value.(bool))
		}
	}

	switch t.Tag {
	case lattice.TagString:
		return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeString)}
	case lattice.TagNumber:
		return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNumber)}
	case lattice.TagBoolean:
		return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeBoolean)}
	case lattice.TagNull, lattice.TagUndefined:
		return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNull)}
	case lattice.TagArray:
		return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeArray)}
	default:
		return objectSchema(n, seen)
	}
}

// objectSchema builds a properties map from n's accessProp children and,
// when n was itself observed as callable or constructible, a synthetic
// "$return" property describing the result of its first recorded call
// (by sorted call ID), or of its first recorded construction when it was
// never called. Other call sites are not described.
func objectSchema(n *modeltree.Node, seen map[*modeltree.Node]bool) *oas3.Schema {
	propMap := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()

	names := make([]string, 0, len(n.AccessProp))
	for name := range n.AccessProp {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := nodeToSchema(n.AccessProp[name], seen)
		propMap.Set(name, oas3.NewJSONSchemaFromSchema[oas3.Referenceable](child))
	}

	results := n.Call
	if len(results) == 0 {
		results = n.New
	}
	if len(results) > 0 {
		callIDs := make([]string, 0, len(results))
		for id := range results {
			callIDs = append(callIDs, id)
		}
		sort.Strings(callIDs)
		ret := nodeToSchema(results[callIDs[0]], seen)
		propMap.Set("$return", oas3.NewJSONSchemaFromSchema[oas3.Referenceable](ret))
	}

	return &oas3.Schema{
		Type:       oas3.NewTypeFromString(oas3.SchemaTypeObject),
		Properties: propMap,
	}
}

func constString(s string) *oas3.Schema {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: s, Tag: "!!str"}
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeString), Enum: []*yaml.Node{node}}
}

func constNumber(f float64) *oas3.Schema {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(f, 'g', -1, 64), Tag: "!!float"}
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNumber), Enum: []*yaml.Node{node}}
}

func constBool(b bool) *oas3.Schema {
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatBool(b), Tag: "!!bool"}
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeBoolean), Enum: []*yaml.Node{node}}
}

// writeDescribe marshals the model tree's inferred schema to w as YAML,
// the same document shape as the persisted model's own encoding
// convention (spec.md §6 uses JSON on disk; the describe subcommand
// prefers YAML for human review, matching the teacher's own YAML-first
// habit for schema fixtures under schemaexec/testdata).
func writeDescribe(w io.Writer, root *modeltree.Node, libraryName string) error {
	schema := describeSchema(root)
	doc := map[string]any{
		"library": libraryName,
		"schema":  schema,
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("noregrets: encoding describe output: %w", err)
	}
	return nil
}
