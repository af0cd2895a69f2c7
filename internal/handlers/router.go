package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qcom/otpauth/internal/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(
	authHandlers *AuthHandlers,
	productHandlers *ProductHandlers,
	authMiddleware *middleware.AuthMiddleware,
	allowedOrigins []string,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.NewCORSMiddleware(allowedOrigins))
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/request-otp", authHandlers.RequestOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/refresh", authHandlers.RefreshToken).Methods("POST", "OPTIONS")
	auth.HandleFunc("/logout", authHandlers.Logout).Methods("POST", "OPTIONS")
	auth.Handle("/me", authMiddleware.RequireAuth(http.HandlerFunc(authHandlers.Me))).Methods("GET", "OPTIONS")

	products := api.PathPrefix("/products").Subrouter()
	products.Use(authMiddleware.RequireAuth)
	products.HandleFunc("", productHandlers.List).Methods("GET", "OPTIONS")
	products.HandleFunc("", productHandlers.Create).Methods("POST", "OPTIONS")
	products.HandleFunc("/seed", productHandlers.Seed).Methods("POST", "OPTIONS")
	products.HandleFunc("/{id}", productHandlers.Delete).Methods("DELETE", "OPTIONS")

	return router
}
