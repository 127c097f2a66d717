package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/freshmandi/freshmandi-backend/api/responses"
	"github.com/freshmandi/freshmandi-backend/api/validators"
	internalorders "github.com/freshmandi/freshmandi-backend/internal/orders"
	"github.com/freshmandi/freshmandi-backend/internal/routing"
	"github.com/freshmandi/freshmandi-backend/internal/vendors"
	"github.com/freshmandi/freshmandi-backend/pkg/db/models"
	"github.com/freshmandi/freshmandi-backend/pkg/enums"
	pkgerrors "github.com/freshmandi/freshmandi-backend/pkg/errors"
	"github.com/freshmandi/freshmandi-backend/pkg/logger"
	"github.com/freshmandi/freshmandi-backend/pkg/pagination"
)

type placeOrderItem struct {
	ProductID      string  `json:"product_id" validate:"required,uuid"`
	ProductName    string  `json:"product_name" validate:"required"`
	Category       string  `json:"category" validate:"required"`
	Subcategory    *string `json:"subcategory"`
	Qty            int     `json:"qty" validate:"required,min=1"`
	UnitPricePaise int64   `json:"unit_price_paise" validate:"required,min=1"`
}

type placeOrderRequest struct {
	UserID       string           `json:"user_id" validate:"required,uuid"`
	Address      string           `json:"address" validate:"required"`
	Lat          float64          `json:"lat" validate:"latitude"`
	Lng          float64          `json:"lng" validate:"longitude"`
	AllowPartial bool             `json:"allow_partial"`
	Items        []placeOrderItem `json:"items" validate:"required,min=1,dive"`
}

type subOrderSummaryResponse struct {
	SubOrderID    uuid.UUID `json:"sub_order_id"`
	VendorID      uuid.UUID `json:"vendor_id"`
	VendorName    string    `json:"vendor_name"`
	LineCount     int       `json:"line_count"`
	SubtotalPaise int64     `json:"subtotal_paise"`
}

type droppedLineResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

type placeOrderResponse struct {
	OrderID          uuid.UUID                 `json:"order_id"`
	SubOrders        []subOrderSummaryResponse `json:"sub_orders"`
	SubtotalPaise    int64                     `json:"subtotal_paise"`
	DeliveryFeePaise int64                     `json:"delivery_fee_paise"`
	Weather          weatherResponse           `json:"weather"`
	DroppedLines     []droppedLineResponse     `json:"dropped_lines,omitempty"`
}

type weatherResponse struct {
	Classification string    `json:"classification"`
	FeePaise       int64     `json:"fee_paise"`
	WindowMinutes  int       `json:"window_minutes"`
	Stale          bool      `json:"stale,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
}

// Place runs the placement saga and returns the created order summary.
func Place(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "routing service unavailable"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildPlaceInput(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, buildPlaceResponse(result))
	}
}

func buildPlaceInput(req placeOrderRequest) (routing.PlaceOrderInput, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return routing.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	lines := make([]vendors.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return routing.PlaceOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lines = append(lines, vendors.CartLine{
			ProductID:      productID,
			ProductName:    item.ProductName,
			Category:       item.Category,
			Subcategory:    item.Subcategory,
			Qty:            item.Qty,
			UnitPricePaise: item.UnitPricePaise,
		})
	}

	return routing.PlaceOrderInput{
		UserID:       userID,
		Lines:        lines,
		Address:      req.Address,
		Lat:          req.Lat,
		Lng:          req.Lng,
		AllowPartial: req.AllowPartial,
	}, nil
}

func buildPlaceResponse(result *routing.PlaceOrderResult) placeOrderResponse {
	resp := placeOrderResponse{
		OrderID:          result.OrderID,
		SubtotalPaise:    result.SubtotalPaise,
		DeliveryFeePaise: result.DeliveryFeePaise,
		Weather: weatherResponse{
			Classification: result.Weather.Classification,
			FeePaise:       result.Weather.FeePaise,
			WindowMinutes:  result.Weather.WindowMinutes,
			Stale:          result.Weather.Stale,
			ObservedAt:     result.Weather.ObservedAt,
		},
	}
	for _, sub := range result.SubOrders {
		resp.SubOrders = append(resp.SubOrders, subOrderSummaryResponse(sub))
	}
	for _, dropped := range result.DroppedLines {
		resp.DroppedLines = append(resp.DroppedLines, droppedLineResponse(dropped))
	}
	return resp
}

type statusUpdateRequest struct {
	SubOrderID *string `json:"sub_order_id"`
	Target     string  `json:"target" validate:"required"`
	Actor      string  `json:"actor" validate:"required"`
	Reason     string  `json:"reason"`
}

// UpdateStatus applies a lifecycle transition to one sub-order or, when no
// sub-order is given, to every active sub-order of the order.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req statusUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseSubOrderState(req.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target state"))
			return
		}

		input := internalorders.StatusUpdateInput{
			OrderID: orderID,
			Target:  target,
			Actor:   req.Actor,
			Reason:  req.Reason,
		}
		if req.SubOrderID != nil && *req.SubOrderID != "" {
			subOrderID, err := uuid.Parse(*req.SubOrderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sub-order id"))
				return
			}
			input.SubOrderID = &subOrderID
		}

		if err := svc.UpdateStatus(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "applied"})
	}
}

type cancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// Cancel cancels the whole order, releasing holds and flagging captured
// payments for refund.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := req.Actor
		if actor == "" {
			actor = "user"
		}

		if err := svc.CancelOrder(r.Context(), orderID, actor, req.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

// Detail returns the full order with sub-orders and line items.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderResponse(order))
	}
}

// List pages a user's orders newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		rawUserID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if rawUserID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user_id query parameter required"))
			return
		}
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var state enums.SubOrderState
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			state, err = enums.ParseSubOrderState(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		orders, nextCursor, err := svc.ListUserOrders(r.Context(), userID, state, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, 0, len(orders))
		for i := range orders {
			items = append(items, buildOrderResponse(&orders[i]))
		}

		responses.WriteSuccess(w, map[string]any{
			"orders":      items,
			"next_cursor": nextCursor,
		})
	}
}

type orderLineItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Category       string    `json:"category"`
	Subcategory    *string   `json:"subcategory,omitempty"`
	Qty            int       `json:"qty"`
	UnitPricePaise int64     `json:"unit_price_paise"`
}

type subOrderResponse struct {
	ID            uuid.UUID               `json:"id"`
	VendorID      uuid.UUID               `json:"vendor_id"`
	State         string                  `json:"state"`
	PaymentStatus string                  `json:"payment_status"`
	SubtotalPaise int64                   `json:"subtotal_paise"`
	Items         []orderLineItemResponse `json:"items"`
}

type orderResponse struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"user_id"`
	ZoneID           uuid.UUID          `json:"zone_id"`
	State            string             `json:"state"`
	SubtotalPaise    int64              `json:"subtotal_paise"`
	DeliveryFeePaise int64              `json:"delivery_fee_paise"`
	Weather          *weatherResponse   `json:"weather,omitempty"`
	Address          string             `json:"address"`
	SubOrders        []subOrderResponse `json:"sub_orders"`
	CreatedAt        time.Time          `json:"created_at"`
}

func buildOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:               order.ID,
		UserID:           order.UserID,
		ZoneID:           order.ZoneID,
		State:            string(order.State),
		SubtotalPaise:    order.SubtotalPaise,
		DeliveryFeePaise: order.DeliveryFee,
		Address:          order.Address,
		CreatedAt:        order.CreatedAt,
	}
	if order.WeatherSnapshot != nil {
		resp.Weather = &weatherResponse{
			Classification: order.WeatherSnapshot.Classification,
			FeePaise:       order.WeatherSnapshot.FeePaise,
			WindowMinutes:  order.WeatherSnapshot.WindowMinutes,
			Stale:          order.WeatherSnapshot.Stale,
			ObservedAt:     order.WeatherSnapshot.ObservedAt,
		}
	}
	for _, sub := range order.SubOrders {
		subResp := subOrderResponse{
			ID:            sub.ID,
			VendorID:      sub.VendorID,
			State:         string(sub.State),
			PaymentStatus: string(sub.PaymentStatus),
			SubtotalPaise: sub.SubtotalPaise,
		}
		for _, item := range sub.Items {
			subResp.Items = append(subResp.Items, orderLineItemResponse{
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				Category:       item.Category,
				Subcategory:    item.Subcategory,
				Qty:            item.Qty,
				UnitPricePaise: item.UnitPricePaise,
			})
		}
		resp.SubOrders = append(resp.SubOrders, subResp)
	}
	return resp
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
