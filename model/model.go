// Package model serializes and parses the traced access-path model to and
// from its portable JSON form, and reconstructs (path, type, order)
// records and ρ-relations for modeltree to rebuild an in-memory tree from.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
	"github.com/apibreak/noregrets/pathtree"
)

// ErrCorrupt is wrapped around any error caused by a persisted model that
// cannot be safely reconstructed — most commonly a ρ-relation endpoint
// that has no matching path.
var ErrCorrupt = fmt.Errorf("model: corrupt")

// Document is the top-level persisted shape: an ordered list of observed
// paths, plus the ρ-relations linking some of them.
type Document struct {
	Paths        []PathEntry    `json:"paths"`
	RhoRelations []RelationPair `json:"rhoRelations"`
}

// PathEntry is one observed path together with its recorded type and the
// order it was first seen in.
type PathEntry struct {
	Path  pathalg.Path
	Type  lattice.Type
	Order int
}

// RelationPair is a persisted ρ-relation, referenced by path rather than
// by node pointer.
type RelationPair struct {
	Source pathalg.Path
	Sink   pathalg.Path
}

// wire types mirror the JSON shape from spec.md §6: PathComponent objects
// with a compType discriminator, and TypeTag as either a bare string or a
// {primType, value} object.

type componentWire struct {
	CompType   string `json:"compType"`
	ModuleName string `json:"moduleName,omitempty"`
	PropName   string `json:"propName,omitempty"`
	CallID     string `json:"callId,omitempty"`
	ArgID      *int   `json:"argId,omitempty"`
}

type pathEntryWire struct {
	Path  []componentWire `json:"path"`
	Type  json.RawMessage `json:"type"`
	Order int             `json:"order"`
}

type documentWire struct {
	Paths        []pathEntryWire     `json:"paths"`
	RhoRelations [][2][]componentWire `json:"rhoRelations"`
}

func componentToWire(c pathalg.Component) componentWire {
	w := componentWire{CompType: c.Kind.String()}
	switch c.Kind {
	case pathalg.KindRequire:
		w.ModuleName = c.ModuleName
	case pathalg.KindAccessProp, pathalg.KindWriteProp:
		w.PropName = c.PropName
	case pathalg.KindArg:
		w.CallID = c.CallID
		argID := c.ArgID
		w.ArgID = &argID
	case pathalg.KindCall, pathalg.KindNew:
		w.CallID = c.CallID
	}
	return w
}

func componentFromWire(w componentWire) (pathalg.Component, error) {
	kind, ok := pathalg.ParseKind(w.CompType)
	if !ok {
		return pathalg.Component{}, fmt.Errorf("%w: unknown compType %q", ErrCorrupt, w.CompType)
	}
	switch kind {
	case pathalg.KindRequire:
		return pathalg.Require(w.ModuleName), nil
	case pathalg.KindAccessProp:
		return pathalg.AccessProp(w.PropName), nil
	case pathalg.KindWriteProp:
		return pathalg.WriteProp(w.PropName), nil
	case pathalg.KindArg:
		if w.ArgID == nil {
			return pathalg.Component{}, fmt.Errorf("%w: arg component missing argId", ErrCorrupt)
		}
		return pathalg.Arg(w.CallID, *w.ArgID), nil
	case pathalg.KindCall:
		return pathalg.Call(w.CallID), nil
	case pathalg.KindNew:
		return pathalg.New(w.CallID), nil
	default:
		return pathalg.Component{}, fmt.Errorf("%w: unhandled kind %v", ErrCorrupt, kind)
	}
}

func pathToWire(p pathalg.Path) []componentWire {
	out := make([]componentWire, len(p))
	for i, c := range p {
		out[i] = componentToWire(c)
	}
	return out
}

func pathFromWire(w []componentWire) (pathalg.Path, error) {
	out := make(pathalg.Path, len(w))
	for i, c := range w {
		comp, err := componentFromWire(c)
		if err != nil {
			return nil, err
		}
		out[i] = comp
	}
	return out, nil
}

func typeToWire(t lattice.Type) (json.RawMessage, error) {
	if !t.IsLiteral() {
		return json.Marshal(t.Tag.String())
	}
	val, err := literalValueToWire(t.Prim, t.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"primType": t.Prim, "value": val})
}

func literalValueToWire(prim string, value any) (any, error) {
	if prim != "number" {
		return value, nil
	}
	if sign, ok := lattice.IsInf(value); ok {
		if sign > 0 {
			return "Infinity", nil
		}
		return "-Infinity", nil
	}
	if lattice.IsNaN(value) {
		return "NaN", nil
	}
	return value, nil
}

func typeFromWire(raw json.RawMessage) (lattice.Type, error) {
	var tagStr string
	if err := json.Unmarshal(raw, &tagStr); err == nil {
		tag, ok := lattice.ParseTag(tagStr)
		if !ok {
			return lattice.Type{}, fmt.Errorf("%w: unknown type tag %q", ErrCorrupt, tagStr)
		}
		return lattice.Bare(tag), nil
	}

	var obj struct {
		PrimType string          `json:"primType"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return lattice.Type{}, fmt.Errorf("%w: unparseable type %s: %v", ErrCorrupt, string(raw), err)
	}
	value, err := literalValueFromWire(obj.PrimType, obj.Value)
	if err != nil {
		return lattice.Type{}, err
	}
	return lattice.Literal(obj.PrimType, value), nil
}

func literalValueFromWire(prim string, raw json.RawMessage) (any, error) {
	if prim != "number" {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return v, nil
	}
	var sentinel string
	if err := json.Unmarshal(raw, &sentinel); err == nil {
		switch sentinel {
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		case "NaN":
			return math.NaN(), nil
		default:
			return nil, fmt.Errorf("%w: unknown numeric sentinel %q", ErrCorrupt, sentinel)
		}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return f, nil
}

// FromTree builds a Document from a fully traced (and optionally
// compressed) path tree, in ascending observation order.
func FromTree(tree *pathtree.Tree) *Document {
	records := tree.Paths()
	doc := &Document{Paths: make([]PathEntry, len(records))}
	for i, r := range records {
		doc.Paths[i] = PathEntry{Path: r.Path, Type: r.Type, Order: r.Order}
	}
	for _, rel := range tree.Relations {
		doc.RhoRelations = append(doc.RhoRelations, RelationPair{Source: rel.Source, Sink: rel.Sink})
	}
	return doc
}

// Write serializes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	wire := documentWire{Paths: make([]pathEntryWire, len(doc.Paths)), RhoRelations: [][2][]componentWire{}}
	for i, p := range doc.Paths {
		typeJSON, err := typeToWire(p.Type)
		if err != nil {
			return fmt.Errorf("model: encoding path %s: %w", p.Path, err)
		}
		wire.Paths[i] = pathEntryWire{Path: pathToWire(p.Path), Type: typeJSON, Order: p.Order}
	}
	for _, rel := range doc.RhoRelations {
		wire.RhoRelations = append(wire.RhoRelations, [2][]componentWire{pathToWire(rel.Source), pathToWire(rel.Sink)})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wire); err != nil {
		return fmt.Errorf("model: writing document: %w", err)
	}
	return nil
}

// Read parses a persisted model, validating its shape against the
// package's meta-schema before attempting to decode it into typed
// records, so a malformed file surfaces as a clean configuration error
// rather than a panic deep in modeltree reconstruction.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("model: reading input: %w", err)
	}
	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("%w: schema validation failed: %v", ErrCorrupt, err)
	}

	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	doc := &Document{Paths: make([]PathEntry, len(wire.Paths))}
	for i, pw := range wire.Paths {
		p, err := pathFromWire(pw.Path)
		if err != nil {
			return nil, err
		}
		typ, err := typeFromWire(pw.Type)
		if err != nil {
			return nil, err
		}
		doc.Paths[i] = PathEntry{Path: p, Type: typ, Order: pw.Order}
	}
	sort.Slice(doc.Paths, func(i, j int) bool { return doc.Paths[i].Order < doc.Paths[j].Order })

	for _, pair := range wire.RhoRelations {
		src, err := pathFromWire(pair[0])
		if err != nil {
			return nil, err
		}
		sink, err := pathFromWire(pair[1])
		if err != nil {
			return nil, err
		}
		doc.RhoRelations = append(doc.RhoRelations, RelationPair{Source: src, Sink: sink})
	}

	return doc, nil
}

// Bytes is a convenience wrapper around Write for tests and CLI dumps.
func Bytes(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
