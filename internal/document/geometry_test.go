package document

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestGeomWithinTolerance(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b orb.Geometry
		want bool
	}{
		{"identical points", orb.Point{445278.0, 1.0}, orb.Point{445278.0, 1.0}, true},
		{"reprojection wiggle", orb.Point{445278.0, 1.0}, orb.Point{445278.49, 1.0}, true},
		{"real move", orb.Point{445278.0, 1.0}, orb.Point{445279.0, 1.0}, false},
		{"y axis counts too", orb.Point{445278.0, 1.0}, orb.Point{445278.0, 2.0}, false},
		{"both nil", nil, nil, true},
		{"one nil", orb.Point{1, 1}, nil, false},
		{"different kinds", orb.Point{1, 1}, orb.LineString{{1, 1}}, false},
		{
			"line within tolerance",
			orb.LineString{{0, 0}, {10, 10}},
			orb.LineString{{0.2, 0.1}, {10.3, 9.8}},
			true,
		},
		{
			"line vertex moved",
			orb.LineString{{0, 0}, {10, 10}},
			orb.LineString{{0, 0}, {10, 11}},
			false,
		},
		{
			"line vertex count differs",
			orb.LineString{{0, 0}, {10, 10}},
			orb.LineString{{0, 0}, {5, 5}, {10, 10}},
			false,
		},
		{
			"polygon within tolerance",
			orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 0}}},
			orb.Polygon{{{0.1, 0}, {4, 0.2}, {3.9, 4}, {0, 0}}},
			true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := GeomWithinTolerance(tc.a, tc.b, DefaultGeomTolerance); got != tc.want {
				t.Errorf("GeomWithinTolerance(%v, %v) = %t, want %t", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestEncodeDecodeGeom(t *testing.T) {
	raw, err := EncodeGeom(orb.Point{6.5, 46.2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	g, err := DecodeGeom(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p, ok := g.(orb.Point); !ok || p != (orb.Point{6.5, 46.2}) {
		t.Fatalf("round trip produced %v", g)
	}

	raw, err = EncodeGeom(nil)
	if err != nil || raw != "" {
		t.Fatalf("nil should encode empty, got %q, %v", raw, err)
	}
	g, err = DecodeGeom("")
	if err != nil || g != nil {
		t.Fatalf("empty should decode nil, got %v, %v", g, err)
	}
	if _, err := DecodeGeom("not geojson"); err == nil {
		t.Fatal("expected a decode error")
	}
}
