package server

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/prognos/prognos/pkg/config"
	"github.com/prognos/prognos/pkg/model"
	"github.com/prognos/prognos/pkg/results"
)

// Stores bundles the two BadgerDB stores the service owns.
type Stores struct {
	Registry *model.Registry
	Runs     *results.Store
}

// OpenStores opens the model registry and the run store under the
// configured data directory.
func OpenStores(cfg config.Config) (Stores, error) {
	registry, err := model.OpenRegistry(model.RegistryConfig{Path: filepath.Join(cfg.DataDir, "models")})
	if err != nil {
		return Stores{}, fmt.Errorf("failed to open model registry: %w", err)
	}
	log.Println("Model registry opened")

	runs, err := results.Open(results.Config{Path: filepath.Join(cfg.DataDir, "runs")})
	if err != nil {
		registry.Close()
		return Stores{}, fmt.Errorf("failed to open run store: %w", err)
	}
	log.Println("Run store opened")

	return Stores{Registry: registry, Runs: runs}, nil
}

// Close shuts both stores down.
func (s Stores) Close() {
	if err := s.Runs.Close(); err != nil {
		log.Printf("Failed to close run store: %v", err)
	}
	if err := s.Registry.Close(); err != nil {
		log.Printf("Failed to close model registry: %v", err)
	}
}

// NewRouter wires all routes.
func NewRouter(h *Handler, hub *EventHub) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/jobs", h.HandleListJobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/run", h.HandleRunJob).Methods(http.MethodPost)
	v1.HandleFunc("/runs/latest", h.HandleLatestRun).Methods(http.MethodGet)
	v1.HandleFunc("/models", h.HandleListModels).Methods(http.MethodGet)
	v1.HandleFunc("/models/train", h.HandleTrain).Methods(http.MethodPost)
	v1.HandleFunc("/models/predict", h.HandlePredict).Methods(http.MethodPost)
	v1.HandleFunc("/events", hub.HandleWebSocket).Methods(http.MethodGet)

	return r
}
