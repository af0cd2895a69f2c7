package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/qcom/otpauth/internal/models"
	"github.com/qcom/otpauth/internal/service"
	"github.com/sirupsen/logrus"
)

type ProductHandlers struct {
	productService *service.ProductService
	validate       *validator.Validate
	logger         *logrus.Logger
}

func NewProductHandlers(productService *service.ProductService, logger *logrus.Logger) *ProductHandlers {
	return &ProductHandlers{
		productService: productService,
		validate:       newValidator(),
		logger:         logger,
	}
}

type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Description string   `json:"description"`
}

type SeedResponse struct {
	Message string `json:"message"`
	Created int    `json:"created"`
}

func (h *ProductHandlers) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	page, _ := strconv.Atoi(params.Get("page"))
	limit, _ := strconv.Atoi(params.Get("limit"))

	result, err := h.productService.List(r.Context(), models.ProductQuery{
		Search:    params.Get("search"),
		Page:      page,
		Limit:     limit,
		SortBy:    params.Get("sortBy"),
		SortOrder: params.Get("sortOrder"),
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "PRODUCTS_UNAVAILABLE", "Failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ProductHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeAndValidate(h.validate, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	product, err := h.productService.Create(r.Context(), req.Name, *req.Price, req.Description)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "PRODUCT_CREATION_FAILED", "Failed to create product")
		return
	}

	respondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.productService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "NOT_FOUND", "Product with ID "+id+" not found")
			return
		}
		h.logger.WithError(err).WithField("product_id", id).Error("Failed to delete product")
		respondWithError(w, http.StatusInternalServerError, "PRODUCT_DELETION_FAILED", "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandlers) Seed(w http.ResponseWriter, r *http.Request) {
	created, err := h.productService.Seed(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to seed products")
		respondWithError(w, http.StatusInternalServerError, "SEED_FAILED", "Failed to create sample data")
		return
	}

	respondWithJSON(w, http.StatusOK, SeedResponse{
		Message: "Sample data created",
		Created: created,
	})
}
