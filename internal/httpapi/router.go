package httpapi

import "net/http"

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/checkout/scan", app.scanHandler(app.CheckoutLane))
	mux.HandleFunc("POST /api/checkout/camera", app.cameraHandler(app.CheckoutLane))
	mux.HandleFunc("GET /api/checkout/bill", app.getBillHandler)
	mux.HandleFunc("PUT /api/checkout/items/{productId}", app.setQuantityHandler)
	mux.HandleFunc("DELETE /api/checkout/items/{productId}", app.removeItemHandler)
	mux.HandleFunc("PUT /api/checkout/customer", app.setCustomerHandler)
	mux.HandleFunc("POST /api/checkout/clear", app.clearHandler)
	mux.HandleFunc("POST /api/checkout/finalize", app.finalizeHandler)

	mux.HandleFunc("POST /api/replenish/scan", app.scanHandler(app.ReplenishLane))
	mux.HandleFunc("POST /api/replenish/camera", app.cameraHandler(app.ReplenishLane))
	mux.HandleFunc("GET /api/replenish", app.getReplenishHandler)
	mux.HandleFunc("PUT /api/replenish/quantity", app.setReplenishQuantityHandler)
	mux.HandleFunc("POST /api/replenish/submit", app.submitReplenishHandler)
	mux.HandleFunc("POST /api/replenish/reset", app.resetReplenishHandler)

	mux.HandleFunc("GET /api/notices", app.noticesHandler)
	mux.HandleFunc("GET /api/orders/{billNumber}", app.getOrderHandler)
	mux.HandleFunc("GET /api/receipts/last", app.lastReceiptHandler)
	mux.HandleFunc("GET /healthz", app.healthHandler)

	return WithCORS(corsOrigins, WithRequestID(WithLogging(app.log, mux)))
}
