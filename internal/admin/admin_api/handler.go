package admin_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"verbs-tickets/internal/logger"
	"verbs-tickets/internal/models"
	"verbs-tickets/internal/store"
	"verbs-tickets/internal/utils"
)

// StripeCatalog is the slice of payment operations the admin surface needs.
type StripeCatalog interface {
	CreateProductAndPrice(ctx context.Context, eventID, tierID, name string, priceDollars float64) (string, string, error)
	RotatePrice(ctx context.Context, productID, oldPriceID string, priceDollars float64) (string, error)
	UpdateProductName(ctx context.Context, productID, name string) error
	ArchiveProductsForEvent(ctx context.Context, eventID string) error
	CreateRefund(ctx context.Context, paymentIntentID string, amountDollars float64) (string, error)
}

type Handler struct {
	db     *store.DB
	stripe StripeCatalog
	logger *logger.Logger
}

func NewHandler(db *store.DB, stripe StripeCatalog, log *logger.Logger) *Handler {
	return &Handler{db: db, stripe: stripe, logger: log}
}

type addEventDJRequest struct {
	EventID         string `json:"event_id"`
	DJID            string `json:"dj_id"`
	NewDJName       string `json:"new_dj_name"`
	NewDJInstagram  string `json:"new_dj_instagram"`
	NewDJSoundcloud string `json:"new_dj_soundcloud"`
	SlotStart       string `json:"slot_start"`
	SlotEnd         string `json:"slot_end"`
}

// AddEventDJ handles POST /api/admin/event-djs. The caller either references
// an existing DJ or supplies new_dj_name to create one inline. The new slot
// is appended at the end of the lineup.
func (h *Handler) AddEventDJ(w http.ResponseWriter, r *http.Request) {
	var req addEventDJRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EventID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing event_id")
		return
	}
	if req.DJID == "" && req.NewDJName == "" {
		utils.WriteError(w, http.StatusBadRequest, "Provide dj_id or new_dj_name")
		return
	}

	ctx := r.Context()
	if _, err := h.db.GetEvent(ctx, req.EventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Event not found")
			return
		}
		h.serverError(w, "AddEventDJ", err)
		return
	}

	djID := req.DJID
	if djID == "" {
		dj := &models.DJ{
			Name:          req.NewDJName,
			InstagramURL:  req.NewDJInstagram,
			SoundcloudURL: req.NewDJSoundcloud,
		}
		if err := h.db.InsertDJ(ctx, dj); err != nil {
			h.serverError(w, "AddEventDJ", err)
			return
		}
		djID = dj.ID
	}

	count, err := h.db.CountEventDJs(ctx, req.EventID)
	if err != nil {
		h.serverError(w, "AddEventDJ", err)
		return
	}

	eventDJ := &models.EventDJ{
		EventID:   req.EventID,
		DJID:      djID,
		SlotStart: req.SlotStart,
		SlotEnd:   req.SlotEnd,
		SortOrder: count,
	}
	if err := h.db.InsertEventDJ(ctx, eventDJ); err != nil {
		if store.IsUniqueViolation(err) {
			utils.WriteError(w, http.StatusBadRequest, "DJ is already in the lineup")
			return
		}
		h.serverError(w, "AddEventDJ", err)
		return
	}

	created, err := h.db.GetEventDJ(ctx, eventDJ.ID)
	if err != nil {
		h.serverError(w, "AddEventDJ", err)
		return
	}

	h.logger.Info("ADMIN", fmt.Sprintf("Added DJ %s to event %s lineup at position %d", djID, req.EventID, count))
	utils.WriteJSON(w, http.StatusCreated, created)
}

type createTierRequest struct {
	EventID  string  `json:"event_id"`
	Name     string  `json:"name"`
	TierType string  `json:"tier_type"`
	Price    float64 `json:"price"`
	MaxStock *int    `json:"max_stock"`
}

// CreateTicketTier handles POST /api/admin/ticket-tiers. The tier row is
// written first, then registered in the payment catalog and stamped with the
// resulting product and price ids.
func (h *Handler) CreateTicketTier(w http.ResponseWriter, r *http.Request) {
	var req createTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EventID == "" || req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing event_id or name")
		return
	}
	if req.TierType != models.TierTypeOnline && req.TierType != models.TierTypeDoor {
		utils.WriteError(w, http.StatusBadRequest, "tier_type must be online or door")
		return
	}
	if req.Price < 0 {
		utils.WriteError(w, http.StatusBadRequest, "Price cannot be negative")
		return
	}

	ctx := r.Context()
	event, err := h.db.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Event not found")
			return
		}
		h.serverError(w, "CreateTicketTier", err)
		return
	}

	tier := &models.TicketTier{
		EventID:  req.EventID,
		Name:     req.Name,
		TierType: req.TierType,
		Price:    req.Price,
		MaxStock: req.MaxStock,
		IsActive: true,
	}
	if err := h.db.InsertTier(ctx, tier); err != nil {
		h.serverError(w, "CreateTicketTier", err)
		return
	}

	productName := fmt.Sprintf("%s - %s", event.Title, req.Name)
	productID, priceID, err := h.stripe.CreateProductAndPrice(ctx, req.EventID, tier.ID, productName, req.Price)
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("Catalog setup failed for tier %s: %v", tier.ID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to configure payment product")
		return
	}
	if err := h.db.SetTierStripeIDs(ctx, tier.ID, productID, priceID); err != nil {
		h.serverError(w, "CreateTicketTier", err)
		return
	}

	tier.StripeProductID = productID
	tier.StripePriceID = priceID
	utils.WriteJSON(w, http.StatusCreated, tier)
}

type updatePriceRequest struct {
	Price float64 `json:"price"`
}

// UpdateTierPrice handles PUT /api/admin/ticket-tiers/{tierID}/price. Prices
// are immutable on the payment side, so a new price is created and the old
// one retired.
func (h *Handler) UpdateTierPrice(w http.ResponseWriter, r *http.Request) {
	tierID := chi.URLParam(r, "tierID")

	var req updatePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Price < 0 {
		utils.WriteError(w, http.StatusBadRequest, "Price cannot be negative")
		return
	}

	ctx := r.Context()
	tier, err := h.db.GetTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket tier not found")
			return
		}
		h.serverError(w, "UpdateTierPrice", err)
		return
	}
	if tier.StripeProductID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Tier has no payment product")
		return
	}

	priceID, err := h.stripe.RotatePrice(ctx, tier.StripeProductID, tier.StripePriceID, req.Price)
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("Price rotation failed for tier %s: %v", tierID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update price")
		return
	}
	if err := h.db.UpdateTierPrice(ctx, tierID, req.Price, priceID); err != nil {
		h.serverError(w, "UpdateTierPrice", err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Price updated")
}

type renameTierRequest struct {
	Name string `json:"name"`
}

// RenameTier handles PUT /api/admin/ticket-tiers/{tierID}/name. The catalog
// product is renamed to match, keeping the "{event} - {tier}" convention used
// at creation.
func (h *Handler) RenameTier(w http.ResponseWriter, r *http.Request) {
	tierID := chi.URLParam(r, "tierID")

	var req renameTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		utils.WriteError(w, http.StatusBadRequest, "Missing name")
		return
	}

	ctx := r.Context()
	tier, err := h.db.GetTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Ticket tier not found")
			return
		}
		h.serverError(w, "RenameTier", err)
		return
	}

	if tier.StripeProductID != "" {
		productName := req.Name
		if event, err := h.db.GetEvent(ctx, tier.EventID); err == nil {
			productName = fmt.Sprintf("%s - %s", event.Title, req.Name)
		}
		if err := h.stripe.UpdateProductName(ctx, tier.StripeProductID, productName); err != nil {
			h.logger.Error("ADMIN", fmt.Sprintf("Product rename failed for tier %s: %v", tierID, err))
			utils.WriteError(w, http.StatusInternalServerError, "Failed to rename payment product")
			return
		}
	}

	if err := h.db.UpdateTierName(ctx, tierID, req.Name); err != nil {
		h.serverError(w, "RenameTier", err)
		return
	}

	utils.WriteMessage(w, http.StatusOK, "Name updated")
}

type refundRequest struct {
	Amount float64 `json:"amount"`
}

// RefundOrder handles POST /api/admin/orders/{orderID}/refund. Only the
// payment-side refund is created here; the order and inventory update when
// the charge.refunded webhook arrives.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	order, err := h.db.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Order not found")
			return
		}
		h.serverError(w, "RefundOrder", err)
		return
	}
	if order.StripePaymentIntentID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Order has no payment intent")
		return
	}
	if order.Status == models.OrderStatusRefunded {
		utils.WriteError(w, http.StatusBadRequest, "Order is already refunded")
		return
	}

	refundID, err := h.stripe.CreateRefund(ctx, order.StripePaymentIntentID, req.Amount)
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("Refund failed for order %s: %v", orderID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create refund")
		return
	}

	h.logger.Info("ADMIN", fmt.Sprintf("Refund %s initiated for order #%d", refundID, order.OrderNumber))
	utils.WriteMessage(w, http.StatusOK, "Refund initiated")
}

// ArchiveEvent handles POST /api/admin/events/{eventID}/archive. The payment
// catalog cleanup is best effort; a failure there leaves orphaned products
// but never blocks archiving.
func (h *Handler) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	ctx := r.Context()
	if _, err := h.db.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.WriteError(w, http.StatusNotFound, "Event not found")
			return
		}
		h.serverError(w, "ArchiveEvent", err)
		return
	}

	if err := h.db.UpdateEventStatus(ctx, eventID, models.EventStatusArchived); err != nil {
		h.serverError(w, "ArchiveEvent", err)
		return
	}
	if err := h.stripe.ArchiveProductsForEvent(ctx, eventID); err != nil {
		h.logger.Warn("ADMIN", fmt.Sprintf("Catalog cleanup failed for event %s: %v", eventID, err))
	}

	utils.WriteMessage(w, http.StatusOK, "Event archived")
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("ADMIN", fmt.Sprintf("%s failed: %v", op, err))
	utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
