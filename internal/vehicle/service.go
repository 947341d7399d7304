package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/apperr"
	"gorm.io/gorm"
)

// ValidationNotifier 审核结果的通知出口（尽力而为，失败由实现方记日志）。
type ValidationNotifier interface {
	NotifyVehicleValidation(ctx context.Context, vehicleID, providerID, adminID uint, accepted bool)
}

// Service 封装车辆侧用例：可租搜索 + 管理员审核流转。
type Service struct {
	repo     *Repo
	blocks   *availability.Repo
	notifier ValidationNotifier
}

func NewService(repo *Repo, blocks *availability.Repo, notifier ValidationNotifier) *Service {
	return &Service{repo: repo, blocks: blocks, notifier: notifier}
}

// SearchBookable 搜索指定日期段内可下单的车辆：
// validated + 属性过滤 + 区间内无任何封锁（手动或派生），按日租金升序。
func (s *Service) SearchBookable(ctx context.Context, rng availability.DateRange, f SearchFilter) ([]Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	var exclude []uint
	if s.blocks != nil {
		ids, err := s.blocks.BlockedVehicleIDs(ctx, rng)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		exclude = ids
	}

	vehicles, err := s.repo.SearchValidated(ctx, f, exclude)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return vehicles, nil
}

// Validate 管理员审核通过一辆待审车。
func (s *Service) Validate(ctx context.Context, adminID, vehicleID uint) (*Vehicle, error) {
	return s.review(ctx, adminID, vehicleID, true)
}

// Reject 管理员驳回一辆待审车。
func (s *Service) Reject(ctx context.Context, adminID, vehicleID uint) (*Vehicle, error) {
	return s.review(ctx, adminID, vehicleID, false)
}

func (s *Service) review(ctx context.Context, adminID, vehicleID uint, accepted bool) (*Vehicle, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("service not initialized")
	}

	v, err := s.repo.FindByID(ctx, vehicleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("vehicle %d not found", vehicleID)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if v.Status != StatusPending {
		return nil, apperr.InvalidStatef("vehicle %d already reviewed (%s)", vehicleID, v.Status)
	}

	if accepted {
		v.Status = StatusValidated
	} else {
		v.Status = StatusRejected
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, apperr.Internal(err)
	}

	if s.notifier != nil {
		s.notifier.NotifyVehicleValidation(ctx, v.ID, v.ProviderID, adminID, accepted)
	}
	return v, nil
}
