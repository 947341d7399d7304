package notification

import (
	"context"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/common/middleware"
)

// Store 通知落地出口。测试里可以替换成会失败的实现。
type Store interface {
	Insert(ctx context.Context, n *Notification) error
}

// Service 业务事件 → 站内通知。
// 所有 Notify* 都是尽力而为：落地失败只记日志并计入熔断器，
// 绝不把错误抛回触发它的业务操作。
type Service struct {
	store   Store
	breaker *middleware.CircuitBreaker
	log     logger.Logger
}

func NewService(store Store, log logger.Logger) *Service {
	return &Service{
		store:   store,
		breaker: middleware.NewCircuitBreaker("notification-store", 5, 30*time.Second),
		log:     log,
	}
}

// NotifyNewReservation 新预订：供应商收到提醒，客户收到确认回执。
func (s *Service) NotifyNewReservation(ctx context.Context, reservationID, providerID, clientID uint) {
	cid := clientID
	rid := reservationID
	s.fire(ctx, &Notification{
		Type:              TypeNewReservation,
		Title:             "Nouvelle réservation",
		Message:           "Un client a réservé un de vos véhicules.",
		RecipientType:     RecipientProvider,
		RecipientID:       providerID,
		SenderType:        SenderClient,
		SenderID:          &cid,
		RelatedEntityType: EntityReservation,
		RelatedEntityID:   &rid,
		Priority:          PriorityHigh,
	})
	s.fire(ctx, &Notification{
		Type:              TypeNewReservation,
		Title:             "Réservation créée",
		Message:           "Votre réservation a été créée avec succès.",
		RecipientType:     RecipientClient,
		RecipientID:       clientID,
		SenderType:        SenderSystem,
		RelatedEntityType: EntityReservation,
		RelatedEntityID:   &rid,
		Priority:          PriorityMedium,
	})
}

// NotifyReservationModified 预订改期。
func (s *Service) NotifyReservationModified(ctx context.Context, reservationID, providerID, clientID uint) {
	cid := clientID
	rid := reservationID
	s.fire(ctx, &Notification{
		Type:              TypeReservationModified,
		Title:             "Réservation modifiée",
		Message:           "Un client a modifié une réservation existante.",
		RecipientType:     RecipientProvider,
		RecipientID:       providerID,
		SenderType:        SenderClient,
		SenderID:          &cid,
		RelatedEntityType: EntityReservation,
		RelatedEntityID:   &rid,
		Priority:          PriorityMedium,
	})
}

// NotifyReservationCancelled 预订取消。
func (s *Service) NotifyReservationCancelled(ctx context.Context, reservationID, providerID, clientID uint) {
	cid := clientID
	rid := reservationID
	s.fire(ctx, &Notification{
		Type:              TypeReservationCancelled,
		Title:             "Réservation annulée",
		Message:           "Un client a annulé une réservation.",
		RecipientType:     RecipientProvider,
		RecipientID:       providerID,
		SenderType:        SenderClient,
		SenderID:          &cid,
		RelatedEntityType: EntityReservation,
		RelatedEntityID:   &rid,
		Priority:          PriorityMedium,
	})
}

// NotifyVehicleValidation 审核结果通知（实现 vehicle.ValidationNotifier）。
func (s *Service) NotifyVehicleValidation(ctx context.Context, vehicleID, providerID, adminID uint, accepted bool) {
	aid := adminID
	vid := vehicleID
	n := &Notification{
		Type:              TypeVehicleAccepted,
		Title:             "Véhicule accepté",
		Message:           "Votre véhicule a été accepté et est maintenant disponible sur la plateforme.",
		RecipientType:     RecipientProvider,
		RecipientID:       providerID,
		SenderType:        SenderAdmin,
		SenderID:          &aid,
		RelatedEntityType: EntityVehicle,
		RelatedEntityID:   &vid,
		Priority:          PriorityMedium,
	}
	if !accepted {
		n.Type = TypeVehicleRejected
		n.Title = "Véhicule rejeté"
		n.Message = "Votre véhicule a été rejeté. Veuillez vérifier les informations et le soumettre à nouveau."
		n.Priority = PriorityHigh
	}
	s.fire(ctx, n)
}

// CreateReservationReminder 出发前提醒（由定时任务触发）。
func (s *Service) CreateReservationReminder(ctx context.Context, reservationID, clientID uint, startDate time.Time) {
	rid := reservationID
	s.fire(ctx, &Notification{
		Type:              TypeReservationReminder,
		Title:             "Rappel de réservation",
		Message:           "Votre réservation commence le " + startDate.Format("2006-01-02") + ".",
		RecipientType:     RecipientClient,
		RecipientID:       clientID,
		SenderType:        SenderSystem,
		RelatedEntityType: EntityReservation,
		RelatedEntityID:   &rid,
		Priority:          PriorityHigh,
	})
}

func (s *Service) fire(ctx context.Context, n *Notification) {
	if s == nil || s.store == nil {
		return
	}
	err := s.breaker.Call(ctx, func() error {
		return s.store.Insert(ctx, n)
	})
	if err != nil && s.log != nil {
		s.log.WithFields(map[string]interface{}{
			"type":      string(n.Type),
			"recipient": n.RecipientID,
			"error":     err.Error(),
		}).Warn("notification delivery failed")
	}
}
