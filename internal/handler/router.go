package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/plantshop/internal/middleware"
	"github.com/mmeshcher/plantshop/internal/model"
	"github.com/mmeshcher/plantshop/internal/workflow"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина. metrics монтируется
// на /metrics без аутентификации, если задан.
func (h *Handler) SetupRouter(metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		anyone := custommiddleware.RequireRole(h.service)
		admin := custommiddleware.RequireRole(h.service, model.RoleAdmin)

		r.Route("/order", func(r chi.Router) {
			r.With(anyone).Post("/", h.CreateOrder)
			r.With(anyone).Get("/as-buyer", h.GetBuyerOrders)
			r.With(admin).Get("/as-admin", h.GetAllOrders)

			r.Route("/{id}", func(r chi.Router) {
				r.With(anyone).Get("/history", h.GetOrderHistory)

				r.With(admin).Patch("/in-progress", h.Transition(workflow.StartProgress))
				r.With(admin).Patch("/packed", h.Transition(workflow.Pack))
				r.With(admin).Patch("/in-delivery", h.Transition(workflow.Ship))
				r.With(admin).Patch("/delivered", h.Transition(workflow.Deliver))
				r.With(admin).Patch("/cancel/as-admin", h.Transition(workflow.AdminCancel))

				r.With(anyone).Patch("/paid", h.Transition(workflow.Pay))
				r.With(anyone).Patch("/cancel", h.Transition(workflow.Cancel))
			})
		})

		r.With(admin).Post("/plant", h.CreatePlant)

		r.Route("/supply", func(r chi.Router) {
			r.With(admin).Post("/", h.CreateSupply)
			r.With(anyone).Post("/cart", h.QuoteCart)
			r.With(anyone).Get("/in-stock", h.GetSuppliesInSale)
			r.With(admin).Get("/all", h.GetAllSupplies)
			r.With(admin).Get("/count-statistics", h.GetStockStatistics)
			r.With(anyone).Get("/{id}/in-stock", h.GetSupplyInSale)
			r.With(admin).Get("/{id}", h.GetSupply)
			r.With(admin).Patch("/{id}/to-stock", h.PutInSale)
			r.With(admin).Patch("/{id}/remove-from-stock", h.RemoveFromSale)
			r.With(admin).Patch("/{id}/price", h.UpdateSupplyPrice)
			r.With(admin).Patch("/{id}/supplier", h.UpdateSupplier)
			r.With(admin).Patch("/{id}/expiry-date", h.UpdateSupplyExpiration)
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
