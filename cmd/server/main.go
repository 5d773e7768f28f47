package main

import (
	"log"
	"net/http"

	"vpos-gateway/internal/admin"
	"vpos-gateway/internal/checkout"
	"vpos-gateway/internal/config"
	"vpos-gateway/internal/db"
	"vpos-gateway/internal/eventlog"
	"vpos-gateway/internal/logger"
	"vpos-gateway/internal/middleware"
	"vpos-gateway/internal/order"
	"vpos-gateway/internal/settings"
	"vpos-gateway/internal/webhook"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	settingsRepo := settings.NewRepository(database)
	settingsSvc := settings.NewService(settingsRepo)

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo)

	eventRepo := eventlog.NewRepository(database)

	checkoutSvc := checkout.NewService(settingsSvc, orderSvc, eventRepo, cfg.PublicBaseURL)
	checkoutHandler := checkout.NewHandler(checkoutSvc, orderSvc)
	presenter := checkout.NewPresenter(checkoutSvc, orderSvc)

	webhookHandler := webhook.NewHandler(settingsSvc, orderSvc, eventRepo)

	auth := admin.NewAuth(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPasswordHash)
	adminHandler := admin.NewHandler(auth, settingsSvc, orderSvc, eventRepo, checkoutSvc)

	router := setupRouter(checkoutHandler, presenter, webhookHandler, adminHandler, auth)

	chain := logger.RequestIDMiddleware(
		logger.LoggingMiddleware(
			middleware.RateLimitMiddleware(
				middleware.CORS(router))))

	log.Printf("🚀 VPOS gateway running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, chain))
}

func setupRouter(co *checkout.Handler, p *checkout.Presenter, wh *webhook.Handler, ad *admin.Handler, auth *admin.Auth) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Shopper-facing API and hosted-form pages.
	mux.HandleFunc("POST /api/orders", co.CreateOrder)
	mux.HandleFunc("POST /api/checkout/pay", co.Pay)
	mux.HandleFunc("GET /api/checkout/config", co.Config)
	mux.HandleFunc("GET /pay/{id}", p.Show)
	mux.HandleFunc("GET /pay/{id}/return", p.Return)
	mux.HandleFunc("GET /pay/{id}/cancel", p.Cancel)

	// Server-to-server payment confirmations from Bancard.
	mux.Handle("POST /webhook/bancard", wh)

	// Operator surface.
	requireAdmin := middleware.RequireAdmin(auth)
	mux.HandleFunc("POST /api/admin/login", ad.Login)
	mux.Handle("GET /api/admin/settings", requireAdmin(http.HandlerFunc(ad.GetSettings)))
	mux.Handle("PUT /api/admin/settings", requireAdmin(http.HandlerFunc(ad.UpdateSettings)))
	mux.Handle("GET /api/admin/orders/{id}", requireAdmin(http.HandlerFunc(ad.GetOrder)))
	mux.Handle("POST /api/admin/orders/{id}/rollback", requireAdmin(http.HandlerFunc(ad.Rollback)))
	mux.Handle("POST /api/admin/orders/{id}/confirmation", requireAdmin(http.HandlerFunc(ad.Confirm)))

	return mux
}
