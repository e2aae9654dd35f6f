package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/shop-service/internal/cart"
	"github.com/shopcore/shop-service/internal/catalog"
	"github.com/shopcore/shop-service/internal/checkout"
	"github.com/shopcore/shop-service/internal/db"
	handler "github.com/shopcore/shop-service/internal/handler/http"
	"github.com/shopcore/shop-service/internal/order"
)

func NewRouter(pg *db.Postgres) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	catalogRepo := catalog.NewRepository(pg.Pool)
	cartRepo := cart.NewRepository(pg.Pool)
	orderRepo := order.NewRepository(pg.Pool)

	catalogSvc := catalog.NewService(catalogRepo)
	cartSvc := cart.NewService(pg.Pool, cartRepo, catalogRepo)
	orderSvc := order.NewService(pg, orderRepo, catalogRepo)
	coordinator := checkout.NewCoordinator(pg, cartRepo, catalogRepo, orderRepo)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	orderHandler := handler.NewOrderHandler(orderSvc, coordinator)

	catalogHandler.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireUserID)
		cartHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
	})

	// Admin routes. Gateway-level authorization decides who reaches them.
	r.Route("/admin", func(r chi.Router) {
		catalogHandler.RegisterAdminRoutes(r)
		orderHandler.RegisterAdminRoutes(r)
	})

	return r
}
