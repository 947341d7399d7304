package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
)

func TestQuoteDeterministic(t *testing.T) {
	a, err := Quote(100, 3, 0, 0.19)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if a.TotalHT != 300 {
		t.Fatalf("expected TotalHT=300, got %v", a.TotalHT)
	}
	if a.VAT != 57 {
		t.Fatalf("expected VAT=57, got %v", a.VAT)
	}
	if a.TotalTTC != 357 {
		t.Fatalf("expected TotalTTC=357, got %v", a.TotalTTC)
	}
}

func TestQuoteDiscountAndDefaults(t *testing.T) {
	a, err := Quote(50, 3, 10, 0)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if a.VATRate != DefaultVATRate {
		t.Fatalf("expected default vat rate, got %v", a.VATRate)
	}
	if a.TotalTTC != 168.5 {
		t.Fatalf("expected TotalTTC=168.5, got %v", a.TotalTTC)
	}

	// 折扣超过总额时不允许出现负数，下限 0。
	a, err = Quote(10, 1, 1000, 0.19)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if a.TotalTTC != 0 {
		t.Fatalf("expected clamped TotalTTC=0, got %v", a.TotalTTC)
	}
}

func TestQuoteRejectsBadInput(t *testing.T) {
	if _, err := Quote(0, 3, 0, 0.19); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero price, got %v", err)
	}
	if _, err := Quote(100, 0, 0, 0.19); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for zero days, got %v", err)
	}
	if _, err := Quote(100, 2, -1, 0.19); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative discount, got %v", err)
	}
}

func TestDaysInclusive(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 6, d, 0, 0, 0, 0, time.Local)
	}
	if got := Days(day(1), day(3)); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	if got := Days(day(5), day(5)); got != 1 {
		t.Fatalf("expected 1 day for same-day rental, got %d", got)
	}
	if got := Days(day(5), day(4)); got != 0 {
		t.Fatalf("expected 0 days for inverted range, got %d", got)
	}
}
