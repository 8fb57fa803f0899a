package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/ajjmal/marketplace-system/internal/middleware"
)

// SetupRouter configures the HTTP routes and middleware of the marketplace API.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/orders/stats", h.GetOrderStats)
		r.Get("/orders/{id}", h.GetOrder)
		r.Get("/orders/{id}/history", h.GetOrderHistory)
		r.Get("/role-requests/pending", h.GetPendingRoleRequests)
		r.Get("/users/{id}/roles", h.GetRoleAssignments)
		r.Get("/users/{id}/role-history", h.GetRoleHistory)
		r.Get("/users/{id}/role-summary", h.GetRoleSummary)

		r.Group(func(r chi.Router) {
			r.Use(h.actorAuth.Middleware)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetMyOrders)
			r.Post("/orders/{id}/status", h.UpdateOrderStatus)
			r.Post("/orders/{id}/payment-status", h.UpdatePaymentStatus)

			r.Post("/role-requests", h.CreateRoleRequest)
			r.Post("/role-requests/{id}/approve", h.ApproveRoleRequest)
			r.Post("/role-requests/{id}/reject", h.RejectRoleRequest)
			r.Delete("/role-requests/{id}", h.CancelRoleRequest)

			r.Post("/users/{id}/primary-role", h.SetPrimaryRole)
			r.Post("/users/{id}/revoke-role", h.RevokeRole)

			r.Get("/notifications", h.GetMyNotifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
