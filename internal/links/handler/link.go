package handler

import (
	"errors"
	"net/http"

	linkserrors "github.com/HefnerLance/bubble-mongo-linker/internal/links/errors"
	"github.com/HefnerLance/bubble-mongo-linker/internal/links/repository"
	"github.com/HefnerLance/bubble-mongo-linker/internal/report"
	apperrors "github.com/HefnerLance/bubble-mongo-linker/pkg/errors"
	httputil "github.com/HefnerLance/bubble-mongo-linker/pkg/http"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/logger"
	"github.com/HefnerLance/bubble-mongo-linker/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/errgroup"
)

// LinkHandler serves the read-only inspection API over the Links collection
// and the running session report.
type LinkHandler struct {
	repo  repository.LinkRepository
	tally *report.Tally
	log   *logger.Logger
}

func NewLinkHandler(repo repository.LinkRepository, tally *report.Tally, log *logger.Logger) *LinkHandler {
	return &LinkHandler{
		repo:  repo,
		tally: tally,
		log:   log,
	}
}

func (h *LinkHandler) RegisterRoutes(router *httprouter.Router) {
	router.Handler(http.MethodGet, "/links", middleware.RequestMetrics("links")(http.HandlerFunc(h.List)))
	router.Handler(http.MethodGet, "/links/source/:id", middleware.RequestMetrics("links_by_source")(h.bySource()))
	router.Handler(http.MethodGet, "/report", middleware.RequestMetrics("report")(http.HandlerFunc(h.Report)))
}

func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	matchType, err := httputil.ExtractMatchType(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	g, ctx := errgroup.WithContext(r.Context())
	var total int64
	g.Go(func() error {
		var err error
		total, err = h.repo.Count(ctx, matchType)
		return err
	})
	var links any
	g.Go(func() error {
		found, err := h.repo.FindAll(ctx, matchType, limit, offset)
		links = found
		return err
	})
	if err := g.Wait(); err != nil {
		h.writeError(w, r, apperrors.StorageFatal("failed to list links", err))
		return
	}

	if err := httputil.WritePaginated(w, links, total, limit, offset); err != nil {
		h.log.Error("failed to write JSON response", "handler", "List", "error", err)
	}
}

func (h *LinkHandler) bySource() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.GetBySource(w, r, httprouter.ParamsFromContext(r.Context()))
	})
}

func (h *LinkHandler) GetBySource(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	link, err := h.repo.FindBySourceID(r.Context(), ps.ByName("id"))
	if err != nil {
		if errors.Is(err, linkserrors.ErrNotFound) {
			h.writeError(w, r, apperrors.NotFound("link for source record"))
			return
		}
		h.writeError(w, r, apperrors.StorageFatal("failed to find link", err))
		return
	}

	if err := httputil.WriteSuccess(w, link); err != nil {
		h.log.Error("failed to write JSON response", "handler", "GetBySource", "error", err)
	}
}

func (h *LinkHandler) Report(w http.ResponseWriter, r *http.Request) {
	if err := httputil.WriteSuccess(w, h.tally.Snapshot()); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Report", "error", err)
	}
}

func (h *LinkHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if httputil.StatusCode(err) >= http.StatusInternalServerError {
		h.log.Error("Inspection request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write JSON response", "error", writeErr)
	}
}
