package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dluxio/hiveonboard/controllers"
	"github.com/dluxio/hiveonboard/httpserverutils"
	"github.com/dluxio/hiveonboard/logger"
	"github.com/dluxio/hiveonboard/metrics"
	"github.com/dluxio/hiveonboard/util/panics"
)

var (
	log   = logger.Logger("SRVR")
	spawn = panics.GoroutineWrapperFunc(log)
)

const gracefulShutdownTimeout = 30 * time.Second

// Start runs the HTTP server and returns a function that gracefully shuts it
// down. adminKey is the STM public key admin requests must be signed with.
func Start(listenAddr string, services *controllers.Services, adminKey string) func() {
	router := mux.NewRouter()
	addRoutes(router, services, adminKey)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: handlers(router, services),
	}
	spawn(func() {
		log.Infof("HTTP server listening on %s", listenAddr)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server closed unexpectedly: %s", err)
		}
	})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(ctx)
		if err != nil {
			log.Errorf("Error shutting down HTTP server: %s", err)
		}
	}
}

func handlers(router *mux.Router, services *controllers.Services) http.Handler {
	var handler http.Handler = router
	handler = httpserverutils.CORSMiddleware(services.Config.CORSOrigins())(handler)
	handler = httpserverutils.RequestLoggingMiddleware(handler)
	return handler
}

func addRoutes(router *mux.Router, services *controllers.Services, adminKey string) {
	handle := httpserverutils.MakeHandler

	// Public API.
	router.HandleFunc("/pricing", handle(services.GetPricing)).Methods("GET")
	router.HandleFunc("/payment/initiate", handle(services.InitiatePayment)).Methods("POST")
	router.HandleFunc("/payment/status/{channelId}", handle(services.GetPaymentStatus)).Methods("GET")
	router.HandleFunc("/channel/{channelId}/status", handle(services.GetPaymentStatus)).Methods("GET")
	router.HandleFunc("/payment/channels/{username}", handle(services.GetChannelsForUsername)).Methods("GET")
	router.HandleFunc("/payment/channel/{channelId}", handle(services.CancelChannel)).Methods("DELETE")
	router.HandleFunc("/payment/verify-transaction", handle(services.VerifyTransaction)).Methods("POST")
	router.HandleFunc("/webhook/payment", handle(services.WebhookPayment)).Methods("POST")
	router.HandleFunc("/notifications/{username}", handle(services.GetNotifications)).Methods("GET")
	router.HandleFunc("/ws/channel/{channelId}", services.SubscribeChannel).Methods("GET")

	// Operational surface.
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpserverutils.SendJSONResponse(w, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Admin API, guarded by signed-challenge authentication.
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(httpserverutils.AdminAuthMiddleware(services.Config.HiveCreatorAccount, adminKey))
	admin.HandleFunc("/act-status", handle(services.GetACTStatus)).Methods("GET")
	admin.HandleFunc("/claim-act", handle(services.ClaimACT)).Methods("POST")
	admin.HandleFunc("/process-pending", handle(services.ProcessPending)).Methods("POST")
	admin.HandleFunc("/manual-create-account", handle(services.ManualCreateAccount)).Methods("POST")
	admin.HandleFunc("/health-check", handle(services.HealthCheck)).Methods("POST")
	admin.HandleFunc("/rc-costs", handle(services.GetRCCosts)).Methods("GET")
	admin.HandleFunc("/channels", handle(services.ListChannels)).Methods("GET")
	admin.HandleFunc("/channels/{channelId}", handle(services.DeleteChannel)).Methods("DELETE")
	admin.HandleFunc("/repair-orphans", handle(services.RepairOrphans)).Methods("POST")
	admin.HandleFunc("/consolidation-info/{cryptoType}", handle(services.GetConsolidationInfo)).Methods("GET")
	admin.HandleFunc("/prepare-consolidation", handle(services.PrepareConsolidation)).Methods("POST")
	admin.HandleFunc("/execute-consolidation", handle(services.ExecuteConsolidation)).Methods("POST")
}
