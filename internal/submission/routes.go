// internal/submission/routes.go

package submission

import (
	"github.com/gorilla/mux"

	"github.com/formhive/formhive-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, adminMiddleware *auth.Middleware) {
	// Public submission endpoint
	public := router.PathPrefix("/api/v1/forms").Subrouter()
	public.HandleFunc("/{id}/submissions", handler.Submit).Methods("POST")

	// Admin surface
	admin := router.PathPrefix("/api/v1/admin").Subrouter()
	admin.Use(adminMiddleware.RequireAdmin)

	admin.HandleFunc("/forms/{id}/submissions", handler.ListSubmissions).Methods("GET")
	admin.HandleFunc("/forms/{id}/submissions/counts", handler.GetSubmissionCounts).Methods("GET")
	admin.HandleFunc("/submissions/{submissionId}", handler.GetSubmission).Methods("GET")
	admin.HandleFunc("/submissions/{submissionId}", handler.DeleteSubmission).Methods("DELETE")
}
