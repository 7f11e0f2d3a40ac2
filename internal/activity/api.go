package activity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "calibrate"

type apiMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newAPIMetrics(reg prometheus.Registerer) *apiMetrics {
	factory := promauto.With(reg)
	return &apiMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status code.",
		}, []string{"route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *apiMetrics) instrument(route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	h = promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h)
}

// NewAPI serves the calibration history read-only, plus /metrics. Each
// API gets its own registry.
func NewAPI(logger *slog.Logger, activityService *Service) *http.ServeMux {
	reg := prometheus.NewRegistry()
	m := newAPIMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("GET /calibrations", m.instrument("list", handleGetCalibrations(logger, activityService)))
	mux.Handle("GET /calibrations/{id}", m.instrument("detail", handleGetCalibrationDetail(logger, activityService)))
	mux.Handle("GET /calibrations/{id}/tcx", m.instrument("tcx", handleGetCalibrationTCX(logger, activityService)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}

func handleGetCalibrations(logger *slog.Logger, activityService *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calibrations, err := activityService.Get(r.Context())
		if err != nil {
			logger.Error("Error getting calibrations", slog.Any("error", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		// The list stays light; splits are in the detail view.
		for i := range calibrations {
			calibrations[i].Splits = nil
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(calibrations); err != nil {
			logger.Error("Error encoding calibrations", slog.Any("error", err))
			return
		}
	})
}

func handleGetCalibrationDetail(logger *slog.Logger, activityService *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calibration, ok := lookupCalibration(w, r, logger, activityService)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(calibration); err != nil {
			logger.Error("Error encoding calibration", slog.Any("error", err))
			return
		}
	})
}

func handleGetCalibrationTCX(logger *slog.Logger, activityService *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calibration, ok := lookupCalibration(w, r, logger, activityService)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/vnd.garmin.tcx+xml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(calibration.TCX); err != nil {
			logger.Error("Error writing tcx", slog.Any("error", err))
			return
		}
	})
}

func lookupCalibration(w http.ResponseWriter, r *http.Request, logger *slog.Logger, activityService *Service) (Calibration, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		logger.Error("Error converting id to int", slog.Any("error", err))
		w.WriteHeader(http.StatusBadRequest)
		return Calibration{}, false
	}

	calibration, err := activityService.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return Calibration{}, false
	}
	if err != nil {
		logger.Error("Error getting calibration", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return Calibration{}, false
	}

	return calibration, true
}
