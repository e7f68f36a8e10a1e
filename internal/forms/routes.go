// internal/forms/routes.go

package forms

import (
	"github.com/gorilla/mux"

	"github.com/formhive/formhive-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, adminMiddleware *auth.Middleware) {
	// Public render endpoint
	public := router.PathPrefix("/api/v1/forms").Subrouter()
	public.HandleFunc("/{id}", handler.RenderForm).Methods("GET")

	// Admin CRUD
	admin := router.PathPrefix("/api/v1/admin/forms").Subrouter()
	admin.Use(adminMiddleware.RequireAdmin)

	admin.HandleFunc("", handler.ListForms).Methods("GET")
	admin.HandleFunc("", handler.CreateForm).Methods("POST")
	admin.HandleFunc("/{id}", handler.GetForm).Methods("GET")
	admin.HandleFunc("/{id}", handler.UpdateForm).Methods("PUT")
	admin.HandleFunc("/{id}", handler.DeleteForm).Methods("DELETE")
}
