package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/procureflow/internal/platform/httpx"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/sheets"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// maxBody bounds request bodies; attachments travel base64 encoded.
const maxBody = 32 << 20

// API is the subset of Service the handler drives.
type API interface {
	Screens() []workflow.Screen
	Queue(ctx context.Context, screen string, page, perPage int) (QueueView, error)
	Complete(ctx context.Context, in CompleteInput) (CompleteResult, error)
	CreateIndent(ctx context.Context, in CreateIndentInput) (Indent, error)
	NextPONumber(ctx context.Context, at time.Time) (string, error)
	RevisablePOs(ctx context.Context) ([]POSummary, error)
	CreatePO(ctx context.Context, in CreatePOInput) (PurchaseOrder, error)
	CreateLift(ctx context.Context, in CreateLiftInput) (Lift, error)
	PendingLiftQuantity(ctx context.Context, indentNumber string) (LiftBalance, error)
	CreateIssue(ctx context.Context, in CreateIssueInput) (Issue, error)
	MasterData(ctx context.Context) (sheets.MasterData, error)
}

// Handler manages procurement endpoints.
type Handler struct {
	logger  *slog.Logger
	service API
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service API) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/screens", h.listScreens)
	r.Get("/screens/{screen}", h.queue)
	r.Post("/screens/{screen}/{key}/complete", h.complete)
	r.Post("/indents", h.createIndent)
	r.Get("/pos/next-number", h.nextPONumber)
	r.Get("/pos/revisable", h.revisablePOs)
	r.Post("/pos", h.createPO)
	r.Post("/lifts", h.createLift)
	r.Get("/lifts/pending/{indent}", h.pendingLift)
	r.Post("/issues", h.createIssue)
	r.Get("/master", h.master)
}

func (h *Handler) listScreens(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"screens": h.service.Screens()})
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	view, err := h.service.Queue(r.Context(), chi.URLParam(r, "screen"), page, perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	var in CompleteInput
	if !h.decode(w, r, &in) {
		return
	}
	in.Screen = chi.URLParam(r, "screen")
	in.Key = chi.URLParam(r, "key")
	result, err := h.service.Complete(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createIndent(w http.ResponseWriter, r *http.Request) {
	var in CreateIndentInput
	if !h.decode(w, r, &in) {
		return
	}
	indent, err := h.service.CreateIndent(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, indent)
}

func (h *Handler) nextPONumber(w http.ResponseWriter, r *http.Request) {
	var at time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, ok := workflow.ParseTimestamp(raw)
		if !ok {
			httpx.RespondError(w, shared.Validationf("invalid date %q", raw))
			return
		}
		at = parsed
	}
	number, err := h.service.NextPONumber(r.Context(), at)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"poNumber": number})
}

func (h *Handler) revisablePOs(w http.ResponseWriter, r *http.Request) {
	pos, err := h.service.RevisablePOs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchaseOrders": pos})
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var in CreatePOInput
	if !h.decode(w, r, &in) {
		return
	}
	po, err := h.service.CreatePO(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) createLift(w http.ResponseWriter, r *http.Request) {
	var in CreateLiftInput
	if !h.decode(w, r, &in) {
		return
	}
	lift, err := h.service.CreateLift(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lift)
}

func (h *Handler) pendingLift(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.PendingLiftQuantity(r.Context(), chi.URLParam(r, "indent"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request) {
	var in CreateIssueInput
	if !h.decode(w, r, &in) {
		return
	}
	issue, err := h.service.CreateIssue(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issue)
}

func (h *Handler) master(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.MasterData(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, shared.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("procurement request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
