package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/auth"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/platform/httpx"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/repositories"
	"github.com/shreyanshu1966/ecommerce-elearning-api/internal/services"
)

// AdminOrderHandlers exposes the admin order management endpoints.
type AdminOrderHandlers struct {
	verifier *auth.Verifier
	orders   services.OrderService
}

// NewAdminOrderHandlers constructs handlers for the admin order surface.
func NewAdminOrderHandlers(verifier *auth.Verifier, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{verifier: verifier, orders: orders}
}

// Routes wires the /orders/admin endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/admin", func(admin chi.Router) {
		if h.verifier != nil {
			admin.Use(h.verifier.Middleware())
		}
		admin.Use(auth.RequireAdmin())

		admin.Get("/", h.list)
		admin.Get("/statistics", h.statistics)
		admin.Get("/{orderID}", h.detail)
		admin.Delete("/{orderID}", h.remove)
		admin.Put("/{orderID}/deliver", h.markDelivered)
		admin.Put("/{orderID}/pay", h.setPaymentStatus)
		admin.Post("/{orderID}/notes", h.addNote)
		admin.Get("/{orderID}/notes", h.listNotes)
		admin.Delete("/{orderID}/notes/{noteID}", h.deleteNote)
		admin.Post("/{orderID}/contact", h.contactCustomer)
	})
}

type adminOrderListItem struct {
	orderPayload
	OwnerName  string `json:"ownerName,omitempty"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
}

func buildAdminOrderItem(view services.AdminOrderView) adminOrderListItem {
	return adminOrderListItem{
		orderPayload: buildOrderPayload(view.Order),
		OwnerName:    view.Owner.Name,
		OwnerEmail:   view.Owner.Email,
	}
}

func (h *AdminOrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	listQuery := services.AdminListQuery{
		Keyword:  query.Get("keyword"),
		SortBy:   services.OrderSortKey(query.Get("sortBy")),
		SortDesc: strings.EqualFold(query.Get("sortDir"), "desc"),
	}
	if raw := query.Get("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paid must be a boolean", http.StatusBadRequest))
			return
		}
		listQuery.Paid = &paid
	}
	if raw := query.Get("delivered"); raw != "" {
		delivered, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "delivered must be a boolean", http.StatusBadRequest))
			return
		}
		listQuery.Delivered = &delivered
	}
	switch kind := strings.ToLower(strings.TrimSpace(query.Get("type"))); kind {
	case "", "any":
	case "product", "course", "mixed":
		listQuery.Kind = repositories.KindFilter(kind)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "type must be product, course, or mixed", http.StatusBadRequest))
		return
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page must be a positive integer", http.StatusBadRequest))
			return
		}
		listQuery.Page = page
	}

	page, err := h.orders.AdminList(ctx, listQuery)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]adminOrderListItem, 0, len(page.Items))
	for _, view := range page.Items {
		items = append(items, buildAdminOrderItem(view))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":     items,
		"page":       page.Page,
		"totalPages": page.TotalPages,
		"totalCount": page.TotalCount,
	})
}

func (h *AdminOrderHandlers) statistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.orders.Stats(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	recent := make([]map[string]any, 0, len(stats.RecentOrders))
	for _, order := range stats.RecentOrders {
		recent = append(recent, map[string]any{
			"id":          order.ID,
			"userId":      order.UserID,
			"totalPrice":  order.TotalPrice,
			"isPaid":      order.IsPaid,
			"isDelivered": order.IsDelivered,
			"createdAt":   order.CreatedAt,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"totalRevenue":         stats.TotalRevenue,
		"todayRevenue":         stats.TodayRevenue,
		"paidCount":            stats.PaidCount,
		"unpaidCount":          stats.UnpaidCount,
		"deliveredCount":       stats.DeliveredCount,
		"pendingPhysicalCount": stats.PendingPhysicalCount,
		"digitalOnlyPaidCount": stats.DigitalOnlyPaidCount,
		"recentOrders":         recent,
		"byPaymentMethod":      stats.RevenueByPaymentMethod,
		"byItemKind":           stats.RevenueByItemKind,
	})
}

func (h *AdminOrderHandlers) detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.orders.AdminGet(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAdminOrderItem(view))
}

func (h *AdminOrderHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.orders.AdminDelete(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminOrderHandlers) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.MarkDelivered(ctx, services.MarkDeliveredCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type setPaymentStatusRequest struct {
	Paid      bool   `json:"paid"`
	PaymentID string `json:"paymentId,omitempty"`
}

func (h *AdminOrderHandlers) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req setPaymentStatusRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.SetPaymentStatus(ctx, services.SetPaymentStatusCommand{
		OrderID:           chi.URLParam(r, "orderID"),
		Paid:              req.Paid,
		ExternalPaymentID: req.PaymentID,
		Actor:             identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type addNoteRequest struct {
	Content string `json:"content"`
}

func (h *AdminOrderHandlers) addNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req addNoteRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.AddNote(ctx, services.AddNoteCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Author:  identity.UserID,
		Content: req.Content,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) listNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notes, err := h.orders.ListNotes(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderNotePayload, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, orderNotePayload{
			ID:        note.ID,
			Author:    note.Author,
			Content:   note.Content,
			CreatedAt: note.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"notes": payload})
}

func (h *AdminOrderHandlers) deleteNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.DeleteNote(ctx, chi.URLParam(r, "orderID"), chi.URLParam(r, "noteID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type contactCustomerRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *AdminOrderHandlers) contactCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req contactCustomerRequest
	if !decodeJSONBody(ctx, w, r, maxOrderBodySize, &req) {
		return
	}

	if err := h.orders.ContactCustomer(ctx, services.ContactCustomerCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Subject: req.Subject,
		Message: req.Message,
		Actor:   identity.UserID,
	}); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"status": "sent"})
}
