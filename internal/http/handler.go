package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/observability"
	"github.com/davidbz/howl/internal/orchestrator"
)

// statusClientClosedRequest mirrors the nginx convention for a caller
// that went away before the response was ready.
const statusClientClosedRequest = 499

// Handler handles HTTP requests.
type Handler struct {
	service *orchestrator.Orchestrator
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(service *orchestrator.Orchestrator) *Handler {
	return &Handler{
		service: service,
	}
}

// HandleGenerate processes generation requests.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	// Inject feature into context for downstream logging.
	ctx = observability.WithFeature(ctx, string(req.Feature))

	logger := observability.FromContext(ctx)
	logger.Info("generation request received",
		zap.String("feature", string(req.Feature)),
		zap.Int("input_chars", len(req.InputText)),
	)

	result, genErr := h.service.Generate(ctx, &req)
	if genErr != nil {
		logger.Error("generation failed", zap.Error(genErr))
		writeGenerationError(w, genErr)
		return
	}

	logger.Info("generation succeeded",
		zap.String("provider", result.Provider),
		zap.Int("attempts", len(result.Attempts)),
		zap.Bool("cached", result.Cached),
	)

	writeJSON(ctx, w, http.StatusOK, result)
}

// HandleGenerateBatch processes chunked generation requests.
func (h *Handler) HandleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Feature domain.Feature           `json:"feature"`
		Chunks  []string                 `json:"chunks"`
		Options domain.GenerationOptions `json:"options,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Chunks) == 0 {
		http.Error(w, "chunks array is empty", http.StatusBadRequest)
		return
	}

	ctx = observability.WithFeature(ctx, string(req.Feature))

	results, err := h.service.GenerateChunks(ctx, req.Feature, req.Chunks, req.Options)
	if err != nil {
		observability.FromContext(ctx).Error("batch generation failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"results": results})
}

// HandleCharacterize profiles a source text without generating anything.
func (h *Handler) HandleCharacterize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "text is empty", http.StatusBadRequest)
		return
	}

	profile := h.service.Characterize(ctx, req.Text)
	writeJSON(ctx, w, http.StatusOK, profile)
}

// HandleStructure scores navigational structure candidates.
func (h *Handler) HandleStructure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Candidates []domain.StructureCandidate `json:"candidates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	analysis := h.service.AnalyzeStructure(ctx, req.Candidates)
	writeJSON(ctx, w, http.StatusOK, analysis)
}

// HandleUsage returns the accumulated usage ledger.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{
		"entries": h.service.UsageSnapshot(),
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

// writeGenerationError maps the error taxonomy onto HTTP status codes
// and renders the typed error, attempt log included, as the body.
func writeGenerationError(w http.ResponseWriter, genErr *domain.GenerationError) {
	status := http.StatusInternalServerError
	switch genErr.Kind {
	case domain.ErrKindValidation:
		status = http.StatusBadRequest
	case domain.ErrKindProviderUnavailable:
		status = http.StatusServiceUnavailable
	case domain.ErrKindAllProvidersExhausted:
		status = http.StatusBadGateway
	case domain.ErrKindProviderTimeout:
		status = http.StatusGatewayTimeout
	case domain.ErrKindProviderRateLimited:
		status = http.StatusTooManyRequests
	case domain.ErrKindCancelled:
		status = statusClientClosedRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": genErr})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", zap.Error(err))
	}
}
