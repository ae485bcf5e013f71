package api

import (
	"net/http"
	"strings"

	"restopos/internal/database"
	"restopos/internal/models"
)

type openOrderRequest struct {
	TableID int64 `json:"tableId"`
}

type addItemRequest struct {
	MenuItemID int64   `json:"menuItemId"`
	Quantity   *int64  `json:"quantity"`
	Note       *string `json:"note"`
}

type completeOrderRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	Discount      int64  `json:"discount"`
}

type payItemsRequest struct {
	ItemIDs       []int64 `json:"itemIds"`
	PaymentMethod string  `json:"paymentMethod"`
}

type syncRequest struct {
	OrderID int64 `json:"orderId"`
}

type checkoutResponse struct {
	Order any          `json:"order"`
	Bill  *models.Bill `json:"bill"`
}

func (s *HTTPServer) handleActiveOrder(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.svc.Orders.GetActiveOrder(r.Context(), tableID)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	orders, err := s.svc.Orders.ListOrders(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *HTTPServer) handleOpenOrder(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if req.TableID <= 0 {
		writeServiceError(w, r, s.logger, database.Invalidf("tableId is required"))
		return
	}

	order, err := s.svc.Orders.OpenOrder(r.Context(), req.TableID)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.svc.Orders.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleCompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var req completeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, bill, err := s.svc.Orders.CompleteOrder(r.Context(), id, req.PaymentMethod, req.Discount)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Order: order, Bill: bill})
}

func (s *HTTPServer) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.svc.Orders.CancelOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handlePayItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var req payItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, bill, err := s.svc.Orders.PayItems(r.Context(), id, req.ItemIDs, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{Order: order, Bill: bill})
}

func (s *HTTPServer) handleListOrderItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	items, err := s.svc.Orders.ListOrderItems(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if items == nil {
		items = []models.OrderItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) handleAddOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if req.MenuItemID <= 0 {
		writeServiceError(w, r, s.logger, database.Invalidf("menuItemId is required"))
		return
	}
	// quantity defaults to one only when omitted
	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	order, err := s.svc.Orders.AddLineItem(r.Context(), id, req.MenuItemID, quantity, req.Note)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *HTTPServer) handleUpdateOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	var patch models.LineItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.svc.Orders.UpdateLineItem(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleRemoveOrderItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.svc.Orders.RemoveLineItem(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleSyncToSheets(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if req.OrderID <= 0 {
		writeServiceError(w, r, s.logger, database.Invalidf("orderId is required"))
		return
	}

	if err := s.svc.Orders.SyncOrder(r.Context(), req.OrderID); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"orderId": req.OrderID, "status": "queued"})
}
