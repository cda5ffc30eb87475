package types

import "testing"

func TestFeedValidAcceptsBoundaryRatios(t *testing.T) {
	f := Feed{MCR: 1001, MSSR: 32000}
	if !f.Valid() {
		t.Fatalf("expected MCR=1001, MSSR=32000 to be accepted")
	}
	f = Feed{MCR: 32000, MSSR: 1001}
	if !f.Valid() {
		t.Fatalf("expected MCR=32000, MSSR=1001 to be accepted")
	}
}

func TestFeedValidRejectsJustOutsideBoundaryRatios(t *testing.T) {
	f := Feed{MCR: 1000, MSSR: 1100}
	if f.Valid() {
		t.Fatalf("expected MCR=1000 (just below the floor) to be rejected")
	}
	f = Feed{MCR: 32001, MSSR: 1100}
	if f.Valid() {
		t.Fatalf("expected MCR=32001 (just above the ceiling) to be rejected")
	}
	f = Feed{MCR: 1750, MSSR: 1000}
	if f.Valid() {
		t.Fatalf("expected MSSR=1000 to be rejected")
	}
	f = Feed{MCR: 1750, MSSR: 32001}
	if f.Valid() {
		t.Fatalf("expected MSSR=32001 to be rejected")
	}
}

func TestFeedValidRejectsICROutsideBoundsWhenPresent(t *testing.T) {
	f := Feed{MCR: 1750, MSSR: 1100, ICR: 1000}
	if f.Valid() {
		t.Fatalf("expected ICR=1000 to be rejected when present")
	}
	f = Feed{MCR: 1750, MSSR: 1100, ICR: 32001}
	if f.Valid() {
		t.Fatalf("expected ICR=32001 to be rejected when present")
	}
	f = Feed{MCR: 1750, MSSR: 1100}
	if !f.Valid() {
		t.Fatalf("expected ICR=0 (absent) to be accepted regardless of bounds")
	}
}
