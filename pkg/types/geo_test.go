package types

import "testing"

var unitSquare = Polygon{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 1},
	{Lat: 1, Lng: 1},
	{Lat: 1, Lng: 0},
}

func TestPolygonContains(t *testing.T) {
	if !unitSquare.Contains(GeoPoint{Lat: 0.5, Lng: 0.5}) {
		t.Fatal("center should be inside")
	}
	if unitSquare.Contains(GeoPoint{Lat: 1.5, Lng: 0.5}) {
		t.Fatal("point above square should be outside")
	}
	if unitSquare.Contains(GeoPoint{Lat: 0.5, Lng: -0.1}) {
		t.Fatal("point left of square should be outside")
	}
}

func TestPolygonContainsDegenerate(t *testing.T) {
	var empty Polygon
	if empty.Contains(GeoPoint{}) {
		t.Fatal("empty polygon contains nothing")
	}
	line := Polygon{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}
	if line.Contains(GeoPoint{Lat: 0.5, Lng: 0.5}) {
		t.Fatal("two-point ring contains nothing")
	}
}

func TestPolygonSurfaceArea(t *testing.T) {
	if got := unitSquare.SurfaceArea(); got != 1 {
		t.Fatalf("expected unit area, got %f", got)
	}
	small := Polygon{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.5},
		{Lat: 0.5, Lng: 0.5},
		{Lat: 0.5, Lng: 0},
	}
	if small.SurfaceArea() >= unitSquare.SurfaceArea() {
		t.Fatal("smaller ring should report smaller area")
	}
}

func TestPolygonRoundTrip(t *testing.T) {
	value, err := unitSquare.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var decoded Polygon
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(decoded) != len(unitSquare) {
		t.Fatalf("expected %d vertices, got %d", len(unitSquare), len(decoded))
	}
	if !decoded.Contains(GeoPoint{Lat: 0.5, Lng: 0.5}) {
		t.Fatal("decoded ring lost containment")
	}
}
