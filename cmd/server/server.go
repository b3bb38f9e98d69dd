package main

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Simplici0/renoprice/internal/api"
	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/export"
	"github.com/Simplici0/renoprice/internal/log"
	"github.com/Simplici0/renoprice/internal/metrics"
	"github.com/Simplici0/renoprice/internal/pricing"
	"github.com/Simplici0/renoprice/internal/store"
	"github.com/Simplici0/renoprice/internal/workorder"
)

const (
	maxBodyBytes = 1 << 20
	formatCSV    = "csv"

	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type server struct {
	estimator *pricing.Estimator
	catalog   *catalog.Store
	store     *store.Store
	validate  *api.Validator
	metrics   *metrics.Metrics
	auth      *apiKeyAuth
	logger    *zap.SugaredLogger
	version   string
}

func (s *server) routes(logger *zap.Logger, reg *prometheus.Registry) http.Handler {
	httpMetrics := metrics.NewMiddleware(reg)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		log.Requests(logger),
		httpMetrics.Handler,
		middleware.Recoverer,
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(s.auth.middleware)

		r.Post("/estimate", s.handleEstimate)
		r.Post("/estimate/batch", s.handleEstimateBatch)
		r.Post("/workorder", s.handleWorkOrder)

		r.Get("/quotes", s.handleQuotesList)
		r.Get("/quotes/export.csv", s.handleQuotesExportCSV)
		r.Get("/quotes/export.xlsx", s.handleQuotesExportXLSX)
		r.Get("/quotes/batches/{id}", s.handleBatchDetail)
		r.Get("/quotes/{id}", s.handleQuoteDetail)
		r.Get("/quotes/{id}/workorder", s.handleQuoteWorkOrder)
		r.Get("/quotes/{id}/text", s.handleQuoteText)

		r.Post("/admin/catalog/reload", s.handleCatalogReload)
	})

	return r
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, api.ErrorResponse{Error: msg})
}

func (s *server) respondEstimateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pricing.ErrUnknownJobType):
		respondError(w, r, http.StatusBadRequest, err.Error())
	default:
		s.logger.Errorw("estimate failed", "error", err, "client", clientName(r.Context()))
		respondError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) respondStoreError(w http.ResponseWriter, r *http.Request, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, notFoundMessage(action))
		return
	}
	s.logger.Errorw(action+" failed", "error", err)
	respondError(w, r, http.StatusInternalServerError, "failed to "+action)
}

// decode reads a JSON body into v and validates it. It writes the error response itself and
// reports whether the handler should continue.
func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(body, v); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	c := s.catalog.Snapshot()
	render.JSON(w, r, api.HealthResponse{
		OK:               true,
		Version:          s.version,
		CatalogRefreshed: c.LastRefreshed,
		JobTypes:         len(c.BaseRates),
	})
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}

	est, err := s.estimator.Estimate(req.JobRequest())
	if err != nil {
		s.respondEstimateError(w, r, err)
		return
	}
	s.metrics.ObserveEstimate(est.JobType, est.RateSource)

	q, err := s.store.SaveQuote(r.Context(), strings.TrimSpace(req.Title), req, est)
	if err != nil {
		s.respondStoreError(w, r, err, "save quote")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, quoteResponse(q))
}

func (s *server) handleEstimateBatch(w http.ResponseWriter, r *http.Request) {
	var req api.BatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.estimator.EstimateBatch(req.JobRequests())
	if err != nil {
		s.respondEstimateError(w, r, err)
		return
	}
	for _, l := range res.Lines {
		s.metrics.ObserveEstimate(l.JobType, l.RateSource)
	}
	s.metrics.ObserveBatch(res.TradeCount)

	lineRequests := make([]any, len(req.Jobs))
	for i, job := range req.Jobs {
		lineRequests[i] = job
	}
	b, err := s.store.SaveBatch(r.Context(), strings.TrimSpace(req.Title), lineRequests, res)
	if err != nil {
		s.respondStoreError(w, r, err, "save batch")
		return
	}

	if r.URL.Query().Get("format") == formatCSV {
		w.Header().Set("X-Batch-ID", b.ID)
		s.writeBatchCSV(w, r, b)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, batchResponse(b))
}

func (s *server) handleBatchDetail(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, err, "load batch")
		return
	}

	if r.URL.Query().Get("format") == formatCSV {
		s.writeBatchCSV(w, r, b)
		return
	}
	render.JSON(w, r, batchResponse(b))
}

func (s *server) writeBatchCSV(w http.ResponseWriter, r *http.Request, b store.Batch) {
	var buf bytes.Buffer
	if err := export.WriteBatchCSV(&buf, b.Result); err != nil {
		s.logger.Errorw("write batch csv failed", "error", err, "batch_id", b.ID)
		respondError(w, r, http.StatusInternalServerError, "failed to write csv")
		return
	}
	writeAttachment(w, contentTypeCSV, "batch-"+b.ID+".csv", buf.Bytes())
}

func (s *server) handleWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}

	est, err := s.estimator.Estimate(req.JobRequest())
	if err != nil {
		s.respondEstimateError(w, r, err)
		return
	}
	s.metrics.ObserveEstimate(est.JobType, est.RateSource)

	s.writeWorkOrder(w, r, workorder.Document{Title: strings.TrimSpace(req.Title), Estimate: est})
}

func (s *server) writeWorkOrder(w http.ResponseWriter, r *http.Request, doc workorder.Document) {
	var buf bytes.Buffer
	if err := workorder.RenderHTML(&buf, doc); err != nil {
		s.logger.Errorw("render work order failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to render work order")
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	quotes, err := s.store.ListQuotes(r.Context(), query)
	if err != nil {
		s.respondStoreError(w, r, err, "load quotes")
		return
	}

	out := make([]api.QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, quoteResponse(q))
	}
	render.JSON(w, r, out)
}

func (s *server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, err, "load quote")
		return
	}
	render.JSON(w, r, quoteResponse(q))
}

func (s *server) handleQuoteWorkOrder(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, err, "load quote")
		return
	}
	s.writeWorkOrder(w, r, quoteDocument(q))
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, r, err, "load quote")
		return
	}

	var buf bytes.Buffer
	if err := workorder.RenderText(&buf, quoteDocument(q)); err != nil {
		s.logger.Errorw("render quote text failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to render quote")
		return
	}
	w.Header().Set("Content-Type", contentTypeText)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleQuotesExportCSV(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.store.ListQuotes(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.respondStoreError(w, r, err, "load quotes")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.QuoteRows(quotes)); err != nil {
		s.logger.Errorw("write quotes csv failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to write csv")
		return
	}
	writeAttachment(w, contentTypeCSV, "quotes.csv", buf.Bytes())
}

func (s *server) handleQuotesExportXLSX(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.store.ListQuotes(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.respondStoreError(w, r, err, "load quotes")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.QuoteRows(quotes)); err != nil {
		s.logger.Errorw("write quotes xlsx failed", "error", err)
		respondError(w, r, http.StatusInternalServerError, "failed to write xlsx")
		return
	}
	writeAttachment(w, contentTypeXLSX, "quotes.xlsx", buf.Bytes())
}

func (s *server) handleCatalogReload(w http.ResponseWriter, r *http.Request) {
	c, err := s.catalog.Reload()
	s.metrics.ObserveReload(err)
	if err != nil {
		s.logger.Warnw("catalog reload failed, keeping current snapshot", "error", err, "client", clientName(r.Context()))
		respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Infow("catalog reloaded", "job_types", len(c.BaseRates), "client", clientName(r.Context()))
	render.JSON(w, r, api.ReloadResponse{
		JobTypes:      len(c.BaseRates),
		Regions:       len(c.RegionMultipliers),
		LastRefreshed: c.LastRefreshed,
	})
}

func notFoundMessage(action string) string {
	if strings.HasSuffix(action, "batch") {
		return "batch not found"
	}
	return "quote not found"
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(body)
}

func quoteResponse(q store.Quote) api.QuoteResponse {
	return api.QuoteResponse{ID: q.ID, CreatedAt: q.CreatedAt, Title: q.Title, Estimate: q.Estimate}
}

func batchResponse(b store.Batch) api.BatchResponse {
	return api.BatchResponse{ID: b.ID, CreatedAt: b.CreatedAt, Title: b.Title, BatchResult: b.Result}
}

func quoteDocument(q store.Quote) workorder.Document {
	return workorder.Document{QuoteID: q.ID, CreatedAt: q.CreatedAt, Title: q.Title, Estimate: q.Estimate}
}
