package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/riviantrackr/aisearch/internal/api"
	"github.com/riviantrackr/aisearch/internal/api/middleware"
	"github.com/riviantrackr/aisearch/internal/ratelimit"
	"github.com/riviantrackr/aisearch/internal/service"
)

// maxSessionHitBody bounds the urlencoded /log-session-hit form.
const maxSessionHitBody = 4 << 10

type SummaryService interface {
	Summarize(ctx context.Context, req service.SummaryRequest) (*service.SummaryOutput, error)
	RateLimitStatus(ctx context.Context, clientIP string) (ratelimit.Status, error)
	RecordSessionHit(ctx context.Context, hit service.SessionHit) error
}

type SummaryHandler struct {
	svc SummaryService
	now func() time.Time
}

func NewSummaryHandler(svc SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc, now: time.Now}
}

// Summary handles GET /summary?q=...
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("query")
	}
	clientIP := middleware.GetClientIP(r)

	out, err := h.svc.Summarize(r.Context(), service.SummaryRequest{
		Query:     query,
		ClientIP:  clientIP,
		UserAgent: r.UserAgent(),
	})

	retryAfter := h.setRateLimitHeaders(w, r, clientIP)
	if err != nil {
		if api.SummaryStatus(err) == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		api.SummaryError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, api.SummaryResponse{
		AnswerHTML: out.Result.AnswerHTML,
		Sources:    out.Result.Sources,
		CacheHit:   out.CacheHit,
	})
}

// setRateLimitHeaders reports the caller's per-IP budget and returns the
// seconds until the window resets. A store failure leaves the headers off
// rather than failing the request.
func (h *SummaryHandler) setRateLimitHeaders(w http.ResponseWriter, r *http.Request, clientIP string) int {
	status, err := h.svc.RateLimitStatus(r.Context(), clientIP)
	if err != nil {
		return int(ratelimit.Window.Seconds())
	}

	retryAfter := int(status.ResetAt.Sub(h.now()).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}

	header := w.Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
	header.Set("X-RateLimit-Reset", strconv.FormatInt(status.ResetAt.Unix(), 10))
	return retryAfter
}

// LogSessionHit handles POST /log-session-hit, which the search page calls
// when it renders a summary from its own session cache.
func (h *SummaryHandler) LogSessionHit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSessionHitBody)
	if err := r.ParseForm(); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}

	query := strings.TrimSpace(r.PostForm.Get("q"))
	if query == "" {
		api.Error(w, http.StatusBadRequest, "q is required")
		return
	}

	resultsCount, err := strconv.Atoi(r.PostForm.Get("results_count"))
	if err != nil || resultsCount < 0 {
		resultsCount = 0
	}

	err = h.svc.RecordSessionHit(r.Context(), service.SessionHit{
		Query:        query,
		ResultsCount: resultsCount,
		ClientIP:     middleware.GetClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
