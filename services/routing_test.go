package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pizza-fulfillment/config"
)

func testRouteClient(t *testing.T, handler http.Handler) *RouteClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRouteClient(config.RoutingConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

// solverHandler answers /vrp with a fixed activity sequence and /route with
// constant leg detail.
func solverHandler(activities []map[string]any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/vrp", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"solution": map[string]any{
				"routes": []map[string]any{
					{"distance": 12500.0, "transport_time": 1800, "activities": activities},
				},
			},
		})
	})
	mux.HandleFunc("/route", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"paths": []map[string]any{
				{
					"distance": 4200.0,
					"time":     600000,
					"instructions": []map[string]any{
						{"text": "Head north"},
						{"text": "Turn right"},
					},
				},
			},
		})
	})
	return mux
}

func TestCalculateOptimalRouteFollowsSolverOrder(t *testing.T) {
	// The solver visits order 9 before order 4, the reverse of submission
	// order. Stops must come back in solver order.
	activities := []map[string]any{
		{"type": "start", "id": "", "address": map[string]float64{"lat": 10.77, "lon": 106.70}},
		{"type": "service", "id": "9", "address": map[string]float64{"lat": 10.80, "lon": 106.72}},
		{"type": "service", "id": "4", "address": map[string]float64{"lat": 10.75, "lon": 106.68}},
		{"type": "end", "id": "", "address": map[string]float64{"lat": 10.77, "lon": 106.70}},
	}
	rc := testRouteClient(t, solverHandler(activities))

	stops := []RouteStop{
		{OrderID: 4, Lat: 10.75, Lng: 106.68},
		{OrderID: 9, Lat: 10.80, Lng: 106.72},
	}
	route, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, stops)
	if err != nil {
		t.Fatalf("CalculateOptimalRoute: %v", err)
	}
	if len(route.Stops) != 2 {
		t.Fatalf("got %d stops, want 2", len(route.Stops))
	}
	if route.Stops[0].OrderID != 9 || route.Stops[1].OrderID != 4 {
		t.Errorf("stop order = [%d, %d], want [9, 4]", route.Stops[0].OrderID, route.Stops[1].OrderID)
	}
	if route.Distance != 12500 || route.Duration != 1800 {
		t.Errorf("route distance/duration = %v/%v, want 12500/1800", route.Distance, route.Duration)
	}
	for i, s := range route.Stops {
		if s.Distance != 4200 {
			t.Errorf("stop %d distance = %v, want 4200", i, s.Distance)
		}
		if s.Duration != 600 {
			t.Errorf("stop %d duration = %v, want 600 (ms converted to s)", i, s.Duration)
		}
		if s.Instruction != "Head north; Turn right" {
			t.Errorf("stop %d instruction = %q", i, s.Instruction)
		}
	}
}

func TestCalculateOptimalRouteNoRoutes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vrp", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"solution": map[string]any{"routes": []any{}}})
	})
	rc := testRouteClient(t, mux)

	_, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, []RouteStop{{OrderID: 1, Lat: 10.8, Lng: 106.7}})
	var optErr *RouteOptimizationError
	if !errors.As(err, &optErr) {
		t.Fatalf("err = %v, want RouteOptimizationError", err)
	}
}

func TestCalculateOptimalRouteSolverError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vrp", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	rc := testRouteClient(t, mux)

	_, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, []RouteStop{{OrderID: 1, Lat: 10.8, Lng: 106.7}})
	var optErr *RouteOptimizationError
	if !errors.As(err, &optErr) {
		t.Fatalf("err = %v, want RouteOptimizationError", err)
	}
}

func TestCalculateOptimalRouteRetriesSolveOnce(t *testing.T) {
	attempts := 0
	activities := []map[string]any{
		{"type": "service", "id": "1", "address": map[string]float64{"lat": 10.8, "lon": 106.7}},
	}
	inner := solverHandler(activities)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/vrp" {
			attempts++
			if attempts == 1 {
				http.Error(w, "transient", http.StatusBadGateway)
				return
			}
		}
		inner.ServeHTTP(w, r)
	})
	rc := testRouteClient(t, mux)

	route, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, []RouteStop{{OrderID: 1, Lat: 10.8, Lng: 106.7}})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("solve attempts = %d, want 2", attempts)
	}
	if len(route.Stops) != 1 || route.Stops[0].OrderID != 1 {
		t.Errorf("unexpected stops: %+v", route.Stops)
	}
}

func TestCalculateOptimalRouteMissingStops(t *testing.T) {
	// Solver dropped order 4: the route must be rejected, not persisted short.
	activities := []map[string]any{
		{"type": "service", "id": "9", "address": map[string]float64{"lat": 10.8, "lon": 106.72}},
	}
	rc := testRouteClient(t, solverHandler(activities))

	stops := []RouteStop{
		{OrderID: 4, Lat: 10.75, Lng: 106.68},
		{OrderID: 9, Lat: 10.80, Lng: 106.72},
	}
	_, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, stops)
	var optErr *RouteOptimizationError
	if !errors.As(err, &optErr) {
		t.Fatalf("err = %v, want RouteOptimizationError", err)
	}
}

func TestCalculateOptimalRouteNoStops(t *testing.T) {
	rc := NewRouteClient(config.RoutingConfig{BaseURL: "http://localhost:0"})
	_, err := rc.CalculateOptimalRoute(context.Background(), 10.77, 106.70, nil)
	var optErr *RouteOptimizationError
	if !errors.As(err, &optErr) {
		t.Fatalf("err = %v, want RouteOptimizationError", err)
	}
}
