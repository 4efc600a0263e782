package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pizza-fulfillment/config"
)

// RouteClient talks to the external vehicle-routing solver. Its only job is
// translation: build the single-vehicle request, trust the solver's stop
// sequence as-is and fetch per-leg detail for each stop.
type RouteClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewRouteClient(cfg config.RoutingConfig) *RouteClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RouteClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// RouteStop is one order coordinate submitted to the solver.
type RouteStop struct {
	OrderID int64
	Address string
	Lat     float64
	Lng     float64
}

// OptimizedStop is one stop in solver order, with leg detail.
type OptimizedStop struct {
	OrderID     int64
	Lat         float64
	Lng         float64
	Distance    float64 // meters from the previous point
	Duration    int64   // seconds from the previous point
	Instruction string
}

// OptimizedRoute is the solver's answer for one vehicle.
type OptimizedRoute struct {
	Distance float64
	Duration int64
	Stops    []OptimizedStop
}

type vrpAddress struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type vrpActivity struct {
	Type    string     `json:"type"`
	ID      string     `json:"id"`
	Address vrpAddress `json:"address"`
}

// CalculateOptimalRoute solves a single-vehicle VRP: the vehicle starts at
// the store, one service stop per order, minimizing total transport time.
// The solver determines the visiting order; it is not re-validated here.
func (c *RouteClient) CalculateOptimalRoute(ctx context.Context, depotLat, depotLng float64, stops []RouteStop) (*OptimizedRoute, error) {
	if len(stops) == 0 {
		return nil, &RouteOptimizationError{Reason: "no stops to route"}
	}

	services := make([]map[string]any, len(stops))
	for i, s := range stops {
		services[i] = map[string]any{
			"id":      strconv.FormatInt(s.OrderID, 10),
			"address": vrpAddress{Lat: s.Lat, Lon: s.Lng},
		}
	}
	reqBody := map[string]any{
		"vehicles": []map[string]any{
			{"vehicle_id": "store", "start": vrpAddress{Lat: depotLat, Lon: depotLng}},
		},
		"services":  services,
		"objective": map[string]string{"type": "min", "value": "transport_time"},
	}

	var solved struct {
		Solution struct {
			Routes []struct {
				Distance      float64       `json:"distance"`
				TransportTime int64         `json:"transport_time"`
				Activities    []vrpActivity `json:"activities"`
			} `json:"routes"`
		} `json:"solution"`
	}
	if err := c.postVRP(ctx, reqBody, &solved); err != nil {
		return nil, err
	}
	if len(solved.Solution.Routes) == 0 {
		return nil, &RouteOptimizationError{Reason: "solver returned no routes"}
	}
	best := solved.Solution.Routes[0]

	route := &OptimizedRoute{
		Distance: best.Distance,
		Duration: best.TransportTime,
	}
	prevLat, prevLng := depotLat, depotLng
	for _, act := range best.Activities {
		// Start/end activities carry no order; only service stops become steps.
		if act.Type != "service" {
			continue
		}
		orderID, err := strconv.ParseInt(act.ID, 10, 64)
		if err != nil {
			return nil, &RouteOptimizationError{Reason: "solver returned non-numeric stop id " + act.ID}
		}
		leg, err := c.legDetail(ctx, prevLat, prevLng, act.Address.Lat, act.Address.Lon)
		if err != nil {
			return nil, err
		}
		leg.OrderID = orderID
		route.Stops = append(route.Stops, *leg)
		prevLat, prevLng = act.Address.Lat, act.Address.Lon
	}
	if len(route.Stops) != len(stops) {
		return nil, &RouteOptimizationError{
			Reason: fmt.Sprintf("solver placed %d of %d stops", len(route.Stops), len(stops)),
		}
	}
	return route, nil
}

// postVRP submits the solve request. One retry on transport errors and 5xx:
// the solve has no local side effects, so retrying is safe.
func (c *RouteClient) postVRP(ctx context.Context, reqBody any, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return &RouteOptimizationError{Reason: "encode request", Err: err}
	}
	endpoint := c.baseURL + "/vrp"
	if c.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(c.apiKey)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return &RouteOptimizationError{Reason: "build request", Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = &RouteOptimizationError{Reason: "solver unreachable", Err: err}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = &RouteOptimizationError{Reason: "solver returned " + resp.Status}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return &RouteOptimizationError{Reason: "solver returned " + resp.Status}
		}
		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return &RouteOptimizationError{Reason: "decode solution", Err: err}
		}
		return nil
	}
	return lastErr
}

// legDetail fetches point-to-point geometry for one leg.
func (c *RouteClient) legDetail(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (*OptimizedStop, error) {
	params := url.Values{}
	params.Add("point", fmt.Sprintf("%f,%f", fromLat, fromLng))
	params.Add("point", fmt.Sprintf("%f,%f", toLat, toLng))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route?"+params.Encode(), nil)
	if err != nil {
		return nil, &RouteOptimizationError{Reason: "build route request", Err: err}
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &RouteOptimizationError{Reason: "route service unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &RouteOptimizationError{Reason: "route service returned " + resp.Status}
	}

	var out struct {
		Paths []struct {
			Distance     float64 `json:"distance"`
			Time         int64   `json:"time"` // milliseconds
			Instructions []struct {
				Text string `json:"text"`
			} `json:"instructions"`
		} `json:"paths"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &RouteOptimizationError{Reason: "decode route", Err: err}
	}
	if len(out.Paths) == 0 {
		return nil, &RouteOptimizationError{Reason: "route service returned no paths"}
	}
	path := out.Paths[0]

	stop := &OptimizedStop{
		Lat:      toLat,
		Lng:      toLng,
		Distance: path.Distance,
		Duration: path.Time / 1000,
	}
	texts := make([]string, 0, len(path.Instructions))
	for _, ins := range path.Instructions {
		if ins.Text != "" {
			texts = append(texts, ins.Text)
		}
	}
	stop.Instruction = strings.Join(texts, "; ")
	return stop, nil
}
