package model

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/apibreak/noregrets/lattice"
	"github.com/apibreak/noregrets/pathalg"
)

func sampleDoc() *Document {
	return &Document{
		Paths: []PathEntry{
			{Path: pathalg.Path{pathalg.Require("lib")}, Type: lattice.Bare(lattice.TagObject), Order: 0},
			{
				Path:  pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("greet")},
				Type:  lattice.Literal("string", "hello"),
				Order: 1,
			},
			{
				Path:  pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("limit")},
				Type:  lattice.Literal("number", math.Inf(1)),
				Order: 2,
			},
		},
		RhoRelations: []RelationPair{
			{
				Source: pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("id")},
				Sink:   pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("id"), pathalg.Arg("c1", 0)},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDoc()
	data, err := Bytes(doc)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if diff := cmp.Diff(doc, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestInfinityAndNaNSentinels(t *testing.T) {
	doc := &Document{
		Paths: []PathEntry{
			{Path: pathalg.Path{pathalg.Require("lib")}, Type: lattice.Bare(lattice.TagObject), Order: 0},
			{
				Path:  pathalg.Path{pathalg.Require("lib"), pathalg.AccessProp("n")},
				Type:  lattice.Literal("number", math.NaN()),
				Order: 1,
			},
		},
	}
	data, err := Bytes(doc)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Contains(data, []byte(`"NaN"`)) {
		t.Fatalf("expected NaN sentinel in serialized output, got %s", data)
	}

	got, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	v := got.Paths[1].Type.Value.(float64)
	if !math.IsNaN(v) {
		t.Fatalf("expected NaN to round-trip, got %v", v)
	}
}

func TestReadRejectsCorruptShape(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte(`{"paths": "not-an-array", "rhoRelations": []}`)))
	if err == nil {
		t.Fatalf("expected schema validation to reject malformed paths field")
	}
}
