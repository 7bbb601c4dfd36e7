package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaravmahajanofficial/dual-tier-cart/internal/api/middleware"
	appErrors "github.com/aaravmahajanofficial/dual-tier-cart/internal/errors"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/models"
	service "github.com/aaravmahajanofficial/dual-tier-cart/internal/services"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/utils"
	"github.com/aaravmahajanofficial/dual-tier-cart/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CartHandler struct {
	cartService service.CartEngine
	validator   *validator.Validate
}

func NewCartHandler(cartService service.CartEngine) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		validator:   validator.New(),
	}
}

// RegisterRoutes mounts the cart routes on mux behind auth.
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux, auth *middleware.AuthMiddleware) {
	mux.Handle("GET /api/v1/carts", auth.Authenticate(h.GetCart()))
	mux.Handle("POST /api/v1/carts/items", auth.Authenticate(h.AddItem()))
	mux.Handle("PUT /api/v1/carts/items/{productId}", auth.Authenticate(h.UpdateQuantity()))
	mux.Handle("DELETE /api/v1/carts/items/{productId}", auth.Authenticate(h.RemoveItem()))
	mux.Handle("DELETE /api/v1/carts", auth.Authenticate(h.ClearCart()))
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, err := h.cartService.Get(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to fetch cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		writeCartResult(w, http.StatusOK, result)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		sanitizeProduct(&req.Product)

		// Token details fill in for a request that carries none.
		details := req.UserDetails
		if details == nil {
			details = claims.Details()
		}

		result, err := h.cartService.Add(r.Context(), claims.UserID, req.Product, req.Quantity, details)
		if err != nil {
			logger.Error("Failed to add item to cart", slog.String("productId", req.Product.ID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Item added to cart",
			slog.String("productId", req.Product.ID),
			slog.Int("quantity", req.Quantity),
			slog.Bool("storeUnavailable", result.StoreUnavailable))

		writeCartResult(w, http.StatusOK, result)
	}
}

func (h *CartHandler) UpdateQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := requireUser(w, r)
		if !ok {
			return
		}

		productID, ok := requireProductID(w, r)
		if !ok {
			return
		}

		var req models.UpdateQuantityRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		result, err := h.cartService.UpdateQuantity(r.Context(), claims.UserID, productID, *req.Quantity)
		if err != nil {
			logger.Warn("Failed to update cart quantity", slog.String("productId", productID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		writeCartResult(w, http.StatusOK, result)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := requireUser(w, r)
		if !ok {
			return
		}

		productID, ok := requireProductID(w, r)
		if !ok {
			return
		}

		result, err := h.cartService.RemoveItem(r.Context(), claims.UserID, productID)
		if err != nil {
			logger.Error("Failed to remove item from cart", slog.String("productId", productID), slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		writeCartResult(w, http.StatusOK, result)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		claims, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, err := h.cartService.Clear(r.Context(), claims.UserID)
		if err != nil {
			logger.Error("Failed to clear cart", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		logger.Info("Cart cleared", slog.Bool("storeUnavailable", result.StoreUnavailable))
		writeCartResult(w, http.StatusOK, result)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.LoggerFromContext(r.Context()).Warn("Unauthorized cart access")
		response.Error(w, appErrors.UnauthorizedError("Authentication required"))
		return nil, false
	}

	return claims, true
}

func requireProductID(w http.ResponseWriter, r *http.Request) (string, bool) {
	productID := strings.TrimSpace(r.PathValue("productId"))
	if productID == "" {
		response.Error(w, appErrors.InvalidArgumentError("Product ID is required"))
		return "", false
	}

	return productID, true
}

func sanitizeProduct(p *models.Product) {
	p.ID = strings.TrimSpace(p.ID)
	p.Title = utils.SanitizeText(p.Title)
	p.Image = strings.TrimSpace(p.Image)
	p.Category = utils.SanitizeText(p.Category)
	p.Description = utils.SanitizeText(p.Description)
}

// writeCartResult flags carts that only reached memory so clients can tell.
func writeCartResult(w http.ResponseWriter, status int, result *service.CartResult) {
	if result.StoreUnavailable {
		w.Header().Set(response.StoreUnavailableHeader, "true")
		response.SuccessWithWarnings(w, status, result.Cart, appErrors.ErrCodeStoreUnavailable)
		return
	}

	response.Success(w, status, result.Cart)
}
