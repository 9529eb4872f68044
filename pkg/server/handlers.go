// Package server exposes the batch engine over HTTP: job execution,
// model training and prediction, stored run retrieval, and a
// WebSocket event feed. The handlers are thin; all semantics live in
// the jobs, rul, and model packages.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prognos/prognos/pkg/config"
	"github.com/prognos/prognos/pkg/httpx"
	"github.com/prognos/prognos/pkg/jobs"
	"github.com/prognos/prognos/pkg/mapreduce"
	"github.com/prognos/prognos/pkg/model"
	"github.com/prognos/prognos/pkg/results"
	"github.com/prognos/prognos/pkg/rul"
	"github.com/prognos/prognos/pkg/telemetry"
)

// Handler carries the wired dependencies of the API.
type Handler struct {
	cfg      config.Config
	registry *model.Registry
	runs     *results.Store
	hub      *EventHub
}

// NewHandler wires the API handler.
func NewHandler(cfg config.Config, registry *model.Registry, runs *results.Store, hub *EventHub) *Handler {
	return &Handler{cfg: cfg, registry: registry, runs: runs, hub: hub}
}

// InputSource is the shared input selector of job and model requests:
// either a server-side file path or inline lines.
type InputSource struct {
	InputPath string   `json:"input_path,omitempty"`
	Lines     []string `json:"lines,omitempty"`
}

func (in InputSource) partitions(partitionSize int) ([][]string, int, error) {
	if in.InputPath != "" {
		parts, err := mapreduce.PartitionFile(in.InputPath, partitionSize)
		return parts, countLines(parts), err
	}
	if len(in.Lines) == 0 {
		return nil, 0, errors.New("request carries neither input_path nor lines")
	}
	var parts [][]string
	for start := 0; start < len(in.Lines); start += partitionSize {
		end := start + partitionSize
		if end > len(in.Lines) {
			end = len(in.Lines)
		}
		parts = append(parts, in.Lines[start:end])
	}
	return parts, len(in.Lines), nil
}

func countLines(partitions [][]string) int {
	n := 0
	for _, p := range partitions {
		n += len(p)
	}
	return n
}

// RunJobRequest selects and parameterizes one batch job.
type RunJobRequest struct {
	InputSource
	Job    string      `json:"job"`
	Params jobs.Params `json:"params"`

	// Parallelism overrides the configured map worker count. Affects
	// wall time only, never output values.
	Parallelism int `json:"parallelism,omitempty"`

	// DisableCombine turns the per-partition pre-reduction off.
	// Diagnostic knob: output is identical either way.
	DisableCombine bool `json:"disable_combine,omitempty"`
}

// RunJobResponse carries one completed batch.
type RunJobResponse struct {
	Job        string             `json:"job"`
	StartedAt  time.Time          `json:"started_at"`
	DurationMs int64              `json:"duration_ms"`
	InputLines int                `json:"input_lines"`
	Results    []mapreduce.Result `json:"results"`
}

// HandleRunJob handles POST /v1/jobs/run.
func (h *Handler) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	var req RunJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	if req.Params.Window == 0 && h.cfg.Window > 0 {
		req.Params.Window = h.cfg.Window
	}
	job, err := jobs.New(req.Job, req.Params)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	partitions, inputLines, err := req.partitions(h.cfg.PartitionSize)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	parallelism := req.Parallelism
	if parallelism <= 0 {
		parallelism = h.cfg.Parallelism
	}

	startedAt := time.Now().UTC()
	output, err := mapreduce.Run(r.Context(), job, partitions, mapreduce.Options{
		Parallelism: parallelism,
		Combine:     !req.DisableCombine,
	})
	if err != nil {
		// The batch failed as a whole; nothing partial is surfaced.
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	duration := time.Since(startedAt)

	run := results.Run{
		Job:        req.Job,
		StartedAt:  startedAt,
		Duration:   duration,
		InputLines: inputLines,
	}
	if err := h.runs.Save(run, output); err != nil {
		log.Printf("Failed to persist %s run: %v", req.Job, err)
	}

	h.hub.Publish(Event{
		Type:   "job_completed",
		Job:    req.Job,
		Detail: map[string]interface{}{"keys": len(output), "duration_ms": duration.Milliseconds()},
	})

	httpx.RespondJSON(w, http.StatusOK, RunJobResponse{
		Job:        req.Job,
		StartedAt:  startedAt,
		DurationMs: duration.Milliseconds(),
		InputLines: inputLines,
		Results:    output,
	})
}

// HandleListJobs handles GET /v1/jobs.
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs.Names()})
}

// HandleLatestRun handles GET /v1/runs/latest?job=<name>. With
// format=tsv the output is the stable line contract, key<TAB>value,
// instead of the JSON envelope.
func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	job := r.URL.Query().Get("job")
	if job == "" {
		httpx.RespondError(w, http.StatusBadRequest, errors.New("missing job query parameter"))
		return
	}

	run, err := h.runs.Latest(job)
	if err != nil {
		if errors.Is(err, results.ErrNoRuns) {
			httpx.RespondError(w, http.StatusNotFound, err)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	if r.URL.Query().Get("format") == "tsv" {
		output := make([]mapreduce.Result, 0, len(run.Lines))
		for _, l := range run.Lines {
			output = append(output, mapreduce.Result{Key: l.Key, Value: l.Value})
		}
		w.Header().Set("Content-Type", "text/tab-separated-values")
		if err := mapreduce.WriteResults(w, output); err != nil {
			log.Printf("Failed to stream %s run: %v", job, err)
		}
		return
	}
	httpx.RespondJSON(w, http.StatusOK, run)
}

// TrainRequest fits and stores a model for one dataset.
type TrainRequest struct {
	InputSource
	DatasetID string `json:"dataset_id"`

	// Trees overrides the ensemble size; 0 keeps the default.
	Trees int `json:"trees,omitempty"`
}

// TrainResponse reports a completed fit.
type TrainResponse struct {
	DatasetID string       `json:"dataset_id"`
	Report    model.Report `json:"report"`
}

// HandleTrain handles POST /v1/models/train. The learning path runs
// as one batch over the dataset's full history: parse, two-pass RUL
// labeling, feature construction, fit, evaluate, store.
func (h *Handler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.DatasetID == "" {
		httpx.RespondError(w, http.StatusBadRequest, errors.New("missing dataset_id"))
		return
	}

	records, err := h.readRecords(req.InputSource, req.DatasetID)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	labeled, err := rul.LabelAll(records)
	if err != nil {
		httpx.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	vectors := make([]telemetry.FeatureVector, 0, len(labeled))
	labels := make([]float64, 0, len(labeled))
	for _, l := range labeled {
		v, err := telemetry.Features(l.Record)
		if err != nil {
			httpx.RespondError(w, http.StatusUnprocessableEntity, err)
			return
		}
		vectors = append(vectors, v)
		labels = append(labels, float64(l.RUL))
	}

	trainer := model.NewForestTrainer(model.ForestConfig{Trees: req.Trees})
	artifact, err := trainer.Train(vectors, labels)
	if err != nil {
		httpx.RespondError(w, http.StatusUnprocessableEntity, fmt.Errorf("training %s: %w", req.DatasetID, err))
		return
	}

	report := model.Evaluate(artifact, vectors, labels)
	if err := h.registry.Put(req.DatasetID, artifact, report); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	log.Printf("Trained model for %s: %d samples, rmse=%.2f r2=%.3f",
		req.DatasetID, report.Samples, report.RMSE, report.R2)
	h.hub.Publish(Event{Type: "model_trained", DatasetID: req.DatasetID, Detail: report})

	httpx.RespondJSON(w, http.StatusOK, TrainResponse{DatasetID: req.DatasetID, Report: report})
}

// PredictRequest scores new telemetry against a stored model.
type PredictRequest struct {
	InputSource
	DatasetID string `json:"dataset_id"`

	// UnitNumber narrows prediction to one unit; 0 means all units.
	UnitNumber int `json:"unit_number,omitempty"`
}

// Prediction is one per-cycle RUL estimate. Estimates are raw model
// output and may be negative.
type Prediction struct {
	UnitNumber  int     `json:"unit_number"`
	Cycle       int     `json:"cycle"`
	RULEstimate float64 `json:"rul_estimate"`
}

// PredictResponse carries the per-cycle estimates.
type PredictResponse struct {
	DatasetID   string       `json:"dataset_id"`
	Predictions []Prediction `json:"predictions"`
}

// HandlePredict handles POST /v1/models/predict. A dataset with no
// trained model is a 404, never a default prediction.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.DatasetID == "" {
		httpx.RespondError(w, http.StatusBadRequest, errors.New("missing dataset_id"))
		return
	}

	forest, _, err := h.registry.Forest(req.DatasetID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			httpx.RespondError(w, http.StatusNotFound, err)
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	records, err := h.readRecords(req.InputSource, req.DatasetID)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if req.UnitNumber > 0 {
		filtered := records[:0]
		for _, rec := range records {
			if rec.UnitNumber == req.UnitNumber {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if len(records) == 0 {
		httpx.RespondError(w, http.StatusUnprocessableEntity, errors.New("no records to predict"))
		return
	}

	vectors, err := telemetry.FeatureMatrix(records)
	if err != nil {
		httpx.RespondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	estimates := forest.Predict(vectors)
	predictions := make([]Prediction, len(records))
	for i, rec := range records {
		predictions[i] = Prediction{UnitNumber: rec.UnitNumber, Cycle: rec.Cycle, RULEstimate: estimates[i]}
	}
	httpx.RespondJSON(w, http.StatusOK, PredictResponse{DatasetID: req.DatasetID, Predictions: predictions})
}

// HandleListModels handles GET /v1/models.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	infos, err := h.registry.List()
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"models": infos})
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readRecords parses an input source into full-schema records,
// silently dropping unparseable lines per the batch contract. A fully
// empty result is an error: an all-corrupt input is a caller mistake,
// not a quiet success.
func (h *Handler) readRecords(in InputSource, datasetID string) ([]telemetry.Record, error) {
	partitions, _, err := in.partitions(h.cfg.PartitionSize)
	if err != nil {
		return nil, err
	}

	parser := telemetry.NewParser(datasetID)
	var records []telemetry.Record
	for _, part := range partitions {
		for _, line := range part {
			if rec, ok := parser.Parse(line); ok {
				records = append(records, rec)
			}
		}
	}
	if len(records) == 0 {
		return nil, errors.New("input contains no parseable records")
	}
	return records, nil
}
