package reservation

import (
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
)

// AllowTransition 预订状态机的允许流转关系。
// confirm 由供应商/管理员侧触发；cancelled 是终态，改期不会把它救回来。
var AllowTransition = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对预订应用状态变更。
// 仅在 CanTransition 返回 true 时生效，否则返回 InvalidState。
func ApplyTransition(r *Reservation, to Status) error {
	if r == nil {
		return apperr.InvalidInputf("reservation is nil")
	}
	if !CanTransition(r.Status, to) {
		return apperr.InvalidStatef("reservation status transition %s -> %s not allowed", r.Status, to)
	}
	r.Status = to
	return nil
}
