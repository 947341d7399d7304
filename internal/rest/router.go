package rest

import (
	"net/http"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/availability"
	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/invoice"
	"github.com/CarLinkRent/CarLinkRent/internal/notification"
	"github.com/CarLinkRent/CarLinkRent/internal/reminder"
	"github.com/CarLinkRent/CarLinkRent/internal/reservation"
	"github.com/CarLinkRent/CarLinkRent/internal/vehicle"
	"github.com/gorilla/mux"
)

// Handler REST 边界层：只做参数解析和错误映射，业务都在领域服务里。
type Handler struct {
	reservations *reservation.Service
	resRepo      *reservation.Repo
	vehicles     *vehicle.Service
	ledger       *availability.Ledger
	invoices     *invoice.Synchronizer
	notes        *notification.Repo
	jobs         *reminder.Jobs
	log          logger.Logger
	now          func() time.Time
}

func NewHandler(
	reservations *reservation.Service,
	resRepo *reservation.Repo,
	vehicles *vehicle.Service,
	ledger *availability.Ledger,
	invoices *invoice.Synchronizer,
	notes *notification.Repo,
	jobs *reminder.Jobs,
	log logger.Logger,
) *Handler {
	return &Handler{
		reservations: reservations,
		resRepo:      resRepo,
		vehicles:     vehicles,
		ledger:       ledger,
		invoices:     invoices,
		notes:        notes,
		jobs:         jobs,
		log:          log,
		now:          time.Now,
	}
}

// Router 挂出全部路由。
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// 车辆搜索（公开）
	api.HandleFunc("/vehicles/search", h.searchVehicles).Methods(http.MethodGet)

	// 预订生命周期
	api.HandleFunc("/reservations", h.createReservation).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{reference}", h.getReservation).Methods(http.MethodGet)
	api.HandleFunc("/reservations/{reference}", h.modifyReservation).Methods(http.MethodPut)
	api.HandleFunc("/reservations/{reference}", h.cancelReservation).Methods(http.MethodDelete)
	api.HandleFunc("/reservations/{reference}/invoice", h.getInvoice).Methods(http.MethodGet)

	// 可用性封锁（供应商）
	api.HandleFunc("/vehicles/{id}/blocks", h.listBlocks).Methods(http.MethodGet)
	api.HandleFunc("/vehicles/{id}/blocks", h.addBlock).Methods(http.MethodPost)
	api.HandleFunc("/blocks/{id}", h.updateBlock).Methods(http.MethodPut)
	api.HandleFunc("/blocks/{id}", h.deleteBlock).Methods(http.MethodDelete)

	// 供应商视图
	api.HandleFunc("/providers/{id}/reservations", h.providerReservations).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}/reservations/stats", h.providerStats).Methods(http.MethodGet)

	// 管理端：车辆审核 + 定时任务手动触发
	api.HandleFunc("/admin/vehicles/{id}/validate", h.validateVehicle).Methods(http.MethodPost)
	api.HandleFunc("/admin/vehicles/{id}/reject", h.rejectVehicle).Methods(http.MethodPost)
	api.HandleFunc("/admin/jobs/reminders", h.runReminderJobs).Methods(http.MethodPost)

	// 站内通知
	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.markNotificationRead).Methods(http.MethodPost)

	return r
}
