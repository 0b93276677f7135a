package controllers

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"carebot/internal/export"
	"carebot/internal/providers"
	"carebot/internal/store"
)

type ApiController struct {
	logger   providers.Logger
	store    store.ProgressStore
	exporter export.ExporterInterface
	cache    providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, progressStore store.ProgressStore, exporter export.ExporterInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:   logger,
		store:    progressStore,
		exporter: exporter,
		cache:    cache,
	}
}

func getUserID(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) GetStats(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "stats", func() (any, error) {
		return ac.store.Statistics(r.Context())
	})
}

func (ac *ApiController) GetAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ac.serveFromCacheOrCompute(w, "answers:"+strconv.FormatInt(userID, 10), func() (any, error) {
		return ac.store.UserAnswers(r.Context(), userID)
	})
}

// GetExport streams the compressed export document for one user.
func (ac *ApiController) GetExport(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	data, err := ac.exporter.UserExport(r.Context(), userID)
	if err != nil {
		ac.logger.Errorf(providers.TypeApp, "Export of user %d failed: %s", userID, err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", "attachment; filename=user_"+strconv.FormatInt(userID, 10)+".json.zst")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
