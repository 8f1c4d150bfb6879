package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahinestrog/frontcounter/internal/checkout"
	"github.com/ahinestrog/frontcounter/internal/model"
	"github.com/ahinestrog/frontcounter/internal/notice"
	"github.com/ahinestrog/frontcounter/internal/replenish"
	"github.com/ahinestrog/frontcounter/internal/scan"
)

// Lane is one flow's scanning session plus the feed its camera reads from.
type Lane struct {
	Session *scan.Session
	Feed    *scan.Feed
}

type OrderReader interface {
	GetOrder(ctx context.Context, billNumber string) (model.Order, error)
}

type App struct {
	Checkout      *checkout.Flow
	CheckoutLane  Lane
	Replenish     *replenish.Flow
	ReplenishLane Lane
	Orders        OrderReader
	// Ping reports whether the store is reachable; nil skips the check.
	Ping    func(ctx context.Context) error
	log     zerolog.Logger
	started time.Time
}

func NewApp(co *checkout.Flow, coLane Lane, rp *replenish.Flow, rpLane Lane, orders OrderReader, log zerolog.Logger) *App {
	return &App{
		Checkout:      co,
		CheckoutLane:  coLane,
		Replenish:     rp,
		ReplenishLane: rpLane,
		Orders:        orders,
		log:           log,
		started:       time.Now(),
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

type scanRequest struct {
	Payload string `json:"payload"`
}

func (a *App) scanHandler(lane Lane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Payload) == "" {
			WriteJSONError(w, http.StatusBadRequest, string(model.KindValidation), "payload is required")
			return
		}
		if err := lane.Feed.Push(req.Payload); err != nil {
			if errors.Is(err, scan.ErrCameraOff) {
				WriteJSONError(w, http.StatusConflict, "camera_off", "enable the camera first")
				return
			}
			WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "state": lane.Session.State().String()})
	}
}

type cameraRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *App) cameraHandler(lane Lane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cameraRequest
		if !decode(w, r, &req) {
			return
		}
		var err error
		if req.Enabled {
			err = lane.Session.StartCamera(r.Context())
		} else {
			err = lane.Session.StopCamera()
		}
		if err != nil {
			WriteJSONError(w, http.StatusConflict, "camera_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enabled": lane.Session.CameraOn(), "state": lane.Session.State().String()})
	}
}

func (a *App) getBillHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Checkout.View())
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

func (a *App) setQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.Checkout.SetQuantity(r.PathValue("productId"), req.Quantity)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) removeItemHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Checkout.Remove(r.PathValue("productId")))
}

type customerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (a *App) setCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.Checkout.SetCustomer(req.Name, req.Phone))
}

func (a *App) clearHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Checkout.Clear())
}

type finalizeResponse struct {
	Order   model.OrderConfirmation `json:"order"`
	Receipt string                  `json:"receipt"`
	Bill    checkout.View           `json:"bill"`
}

func (a *App) finalizeHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Checkout.Finalize(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{Order: rec.Confirmation, Receipt: rec.Text, Bill: a.Checkout.View()})
}

func (a *App) lastReceiptHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.Checkout.LastReceipt()
	if !ok {
		WriteJSONError(w, http.StatusNotFound, string(model.KindNotFound), "no receipt yet")
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/plain") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(rec.Text))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *App) getReplenishHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Replenish.View())
}

type replenishQuantityRequest struct {
	Quantity string `json:"quantity"`
}

func (a *App) setReplenishQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req replenishQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := a.Replenish.SetQuantity(req.Quantity)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *App) submitReplenishHandler(w http.ResponseWriter, r *http.Request) {
	conf, err := a.Replenish.Submit(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (a *App) resetReplenishHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Replenish.Reset())
}

func (a *App) noticesHandler(w http.ResponseWriter, r *http.Request) {
	var board *notice.Board
	switch flow := r.URL.Query().Get("flow"); flow {
	case "", "checkout":
		board = a.Checkout.Notices()
	case "replenish":
		board = a.Replenish.Notices()
	default:
		WriteJSONError(w, http.StatusBadRequest, string(model.KindValidation), fmt.Sprintf("unknown flow %q", flow))
		return
	}
	writeJSON(w, http.StatusOK, board.Active())
}

func (a *App) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	if a.Orders == nil {
		WriteJSONError(w, http.StatusNotImplemented, "not_implemented", "")
		return
	}
	o, err := a.Orders.GetOrder(r.Context(), r.PathValue("billNumber"))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":          "ok",
		"uptime":          time.Since(a.started).Round(time.Second).String(),
		"checkout_state":  a.CheckoutLane.Session.State().String(),
		"replenish_state": a.ReplenishLane.Session.State().String(),
	}
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["store"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}
