package availability

import (
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
)

const dayLayout = "2006-01-02"

// DateRange 闭区间日期段 [Start, End]，粒度为天。
// 所有冲突判断统一走 Overlaps，不允许各处自己写比较逻辑。
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange 规整两端后构造区间；End 早于 Start 视为非法入参。
func NewDateRange(start, end time.Time) (DateRange, error) {
	s := Normalize(start)
	e := Normalize(end)
	if e.Before(s) {
		return DateRange{}, apperr.InvalidInputf("end date must be the same or after start date")
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDay 按本地日历解析 "YYYY-MM-DD"。
// 刻意不走带时区的时间戳解析，避免跨时区引入前后一天的偏移。
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, apperr.InvalidInputf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseDateRange 解析一对 "YYYY-MM-DD" 并构造区间。
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(s, e)
}

// Normalize 去掉时分秒，只保留本地日历日。
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Overlaps 闭区间重叠判断：a.Start <= b.End && a.End >= b.Start。
// 两端都算：共享同一天（比如上一单的还车日和下一单的取车日）也是冲突。
func Overlaps(a, b DateRange) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

// Format 输出 "YYYY-MM-DD"。
func (r DateRange) Format() (string, string) {
	return r.Start.Format(dayLayout), r.End.Format(dayLayout)
}
