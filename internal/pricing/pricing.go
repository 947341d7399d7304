package pricing

import (
	"math"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
)

// DefaultVATRate 默认增值税率。
const DefaultVATRate = 0.19

// Amounts 一次报价的金额拆分（金额统一保留两位小数）。
type Amounts struct {
	TotalHT  float64 // 不含税总额 = 单价 * 天数
	VATRate  float64 // 实际使用的税率
	VAT      float64 // 税额 = TotalHT * VATRate
	TotalTTC float64 // 含税总额 = TotalHT + VAT - 折扣（下限 0）
}

// Quote 纯函数报价：不访问任何外部状态。
// unitPriceHT / days 必须为正；discount 不允许为负；
// vatRate <= 0 时回退到默认税率。
// 折扣超过 HT+VAT 时 TotalTTC 取 0，不允许出现负数账单。
func Quote(unitPriceHT float64, days int, discount, vatRate float64) (Amounts, error) {
	if unitPriceHT <= 0 {
		return Amounts{}, apperr.InvalidInputf("unit price must be positive, got %v", unitPriceHT)
	}
	if days <= 0 {
		return Amounts{}, apperr.InvalidInputf("day count must be positive, got %d", days)
	}
	if discount < 0 {
		return Amounts{}, apperr.InvalidInputf("discount must not be negative, got %v", discount)
	}
	if vatRate <= 0 {
		vatRate = DefaultVATRate
	}

	totalHT := round2(unitPriceHT * float64(days))
	vat := round2(totalHT * vatRate)
	ttc := round2(totalHT + vat - discount)
	if ttc < 0 {
		ttc = 0
	}

	return Amounts{
		TotalHT:  totalHT,
		VATRate:  vatRate,
		VAT:      vat,
		TotalTTC: ttc,
	}, nil
}

// Days 计算闭区间天数：首尾两天都计费。
// 入参必须已经规整到日粒度（见 availability.Normalize）。
func Days(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
