package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/tzwhere/internal/core/observability"
	"github.com/mohammed-shakir/tzwhere/internal/engine"
)

const Route = "/v1/timezone"

// Resolver maps a coordinate to a timezone name.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (zone string, ok bool, err error)
}

type Response struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Timezone string  `json:"timezone,omitempty"`
	Found    bool    `json:"found"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleTimezone validates lat/lng and resolves them. Unlike the engine,
// which treats out-of-range input as no match, the HTTP surface rejects it.
func HandleTimezone(logger *slog.Logger, timeout time.Duration, res Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, Route, sw.code, time.Since(start).Seconds())
		}()

		lat, lng, err := ParseCoordinates(r)
		if err != nil {
			writeJSON(sw, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		zone, ok, err := res.Resolve(ctx, lat, lng)
		if err != nil {
			code := statusFor(err)
			logger.ErrorContext(ctx, "timezone lookup failed", "lat", lat, "lng", lng, "err", err)
			writeJSON(sw, code, errorResponse{Error: http.StatusText(code)})
			return
		}
		writeJSON(sw, http.StatusOK, Response{Lat: lat, Lng: lng, Timezone: zone, Found: ok})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, engine.ErrDatasetUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ParseCoordinates reads lat and lng (lon is accepted as an alias).
func ParseCoordinates(r *http.Request) (lat, lng float64, err error) {
	q := r.URL.Query()
	rawLat := strings.TrimSpace(q.Get("lat"))
	rawLng := strings.TrimSpace(q.Get("lng"))
	if rawLng == "" {
		rawLng = strings.TrimSpace(q.Get("lon"))
	}
	if rawLat == "" || rawLng == "" {
		return 0, 0, errors.New("missing required parameters: lat and lng")
	}

	if lat, err = parseFloat(rawLat); err != nil {
		return 0, 0, fmt.Errorf("lat: %w", err)
	}
	if lng, err = parseFloat(rawLng); err != nil {
		return 0, 0, fmt.Errorf("lng: %w", err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, errors.New("latitude must be in [-90,90]")
	}
	if lng < -180 || lng > 180 {
		return 0, 0, errors.New("longitude must be in [-180,180]")
	}
	return lat, lng, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("must be a finite number")
	}
	return f, nil
}
