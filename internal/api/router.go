package api

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-sales-etl/docs" // swagger spec registration
	"go-sales-etl/internal/api/handler"
)

// NewRouter wires the run endpoints and the swagger UI.
func NewRouter(h *handler.Handler) *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/runs", h.CreateRun).Methods(http.MethodPost)
	v1.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}/report", h.GetReport).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}/errors", h.GetRunErrors).Methods(http.MethodGet)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}
