package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
)

func mustRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	r, err := ParseDateRange(start, end)
	if err != nil {
		t.Fatalf("ParseDateRange(%s, %s): %v", start, end, err)
	}
	return r
}

func TestOverlapsInclusiveBoundary(t *testing.T) {
	a := mustRange(t, "2024-01-01", "2024-01-05")
	b := mustRange(t, "2024-01-05", "2024-01-10")
	if !Overlaps(a, b) {
		t.Fatalf("shared boundary day must count as overlap")
	}

	c := mustRange(t, "2024-01-06", "2024-01-10")
	if Overlaps(a, c) {
		t.Fatalf("adjacent but disjoint ranges must not overlap")
	}
}

func TestOverlapsSymmetry(t *testing.T) {
	cases := [][4]string{
		{"2024-01-01", "2024-01-05", "2024-01-03", "2024-01-08"},
		{"2024-01-01", "2024-01-05", "2024-01-05", "2024-01-05"},
		{"2024-01-01", "2024-01-10", "2024-01-03", "2024-01-04"},
		{"2024-01-01", "2024-01-02", "2024-02-01", "2024-02-02"},
	}
	for _, c := range cases {
		a := mustRange(t, c[0], c[1])
		b := mustRange(t, c[2], c[3])
		if Overlaps(a, b) != Overlaps(b, a) {
			t.Fatalf("overlap must be symmetric for %v", c)
		}
	}
}

func TestNormalizeStripsTimeOfDay(t *testing.T) {
	late := time.Date(2024, 6, 1, 23, 45, 12, 999, time.Local)
	got := Normalize(late)
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseDateRangeRejectsBadInput(t *testing.T) {
	if _, err := ParseDateRange("2024-06-05", "2024-06-01"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for inverted range, got %v", err)
	}
	if _, err := ParseDay("06/01/2024"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for wrong layout, got %v", err)
	}
}
