package handler

import (
	"net/http"
	"strconv"
	"time"

	"fz-pos-api/internal/pos"
	"fz-pos-api/internal/scanner"
	"fz-pos-api/internal/service"
	"fz-pos-api/pkg/apierror"
	"fz-pos-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// SessionHandler exposes POS sessions over REST and WebSocket.
type SessionHandler struct {
	sessions *service.SessionManager
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*pos.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return s, true
}

// Create handles POST /api/v1/pos/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	response.Created(w, s.Snapshot())
}

// Get handles GET /api/v1/pos/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	response.OK(w, s.Snapshot())
}

// Delete handles DELETE /api/v1/pos/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// KeyRequest is one keystroke posted by the screen.
type KeyRequest struct {
	Key        string         `json:"key"`
	Target     scanner.Target `json:"target"`
	FieldValue string         `json:"field_value"`
	// At is when the screen saw the key, in Unix milliseconds. The server
	// clock is used when it is absent.
	At int64 `json:"at,omitempty"`
}

func (k KeyRequest) event() scanner.KeyEvent {
	ev := scanner.KeyEvent{Key: k.Key, Target: k.Target, FieldValue: k.FieldValue}
	if k.At > 0 {
		ev.At = time.UnixMilli(k.At)
	}
	return ev
}

// Key handles POST /api/v1/pos/sessions/{id}/keys
func (h *SessionHandler) Key(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req KeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Key == "" {
		response.Error(w, apierror.ValidationError("key is required",
			apierror.FieldError{Field: "key", Message: "must not be empty"}))
		return
	}
	response.OK(w, s.HandleKey(req.event()))
}

// ScanRequest carries an already-decoded code.
type ScanRequest struct {
	Raw string `json:"raw"`
}

// Scan handles POST /api/v1/pos/sessions/{id}/scan
func (h *SessionHandler) Scan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Raw == "" {
		response.Error(w, apierror.ValidationError("raw is required",
			apierror.FieldError{Field: "raw", Message: "must not be empty"}))
		return
	}

	res, err := s.Scan(r.Context(), req.Raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, res)
}

// SearchRequest is the search field text.
type SearchRequest struct {
	Query string `json:"query"`
}

// Search handles POST /api/v1/pos/sessions/{id}/search
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := s.Search(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, results)
}

// AddItemRequest picks a product from the search results.
type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
}

// AddItem handles POST /api/v1/pos/sessions/{id}/cart/items
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.AddProduct(req.ProductID); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, s.Snapshot())
}

// UpdateItemRequest changes a line by Delta.
type UpdateItemRequest struct {
	Delta int `json:"delta"`
}

// UpdateItem handles PATCH /api/v1/pos/sessions/{id}/cart/items/{productID}
func (h *SessionHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Delta == 0 {
		response.Error(w, apierror.ValidationError("delta is required",
			apierror.FieldError{Field: "delta", Message: "must not be zero"}))
		return
	}
	if err := s.UpdateQuantity(productID, req.Delta); err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, s.Snapshot())
}

// RemoveItem handles DELETE /api/v1/pos/sessions/{id}/cart/items/{productID}
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	if !s.Remove(productID) {
		response.Error(w, apierror.NotFound("product is not in the cart"))
		return
	}
	response.OK(w, s.Snapshot())
}

// ClearCart handles DELETE /api/v1/pos/sessions/{id}/cart
func (h *SessionHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCart()
	response.OK(w, s.Snapshot())
}

// Checkout handles POST /api/v1/pos/sessions/{id}/checkout
func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req pos.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	order, err := s.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, order)
}

// CheckPayment handles POST /api/v1/pos/sessions/{id}/payment/check
func (h *SessionHandler) CheckPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	order, err := s.CheckPayment()
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, order)
}

// CancelPayment handles POST /api/v1/pos/sessions/{id}/payment/cancel
func (h *SessionHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if !s.CancelPayment() {
		writeError(w, r, pos.ErrNoPendingPayment)
		return
	}
	response.OK(w, s.Snapshot())
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("invalid product id"))
		return 0, false
	}
	return id, true
}
