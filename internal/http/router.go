package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const checkInPrefix = "/checkin/api/v1/events/"

var errBadPath = errors.New("unknown check-in route")

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// HealthCheck one dependency reported by /healthz
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RegisterHealthRoutes /healthz answers 503 when any check fails
func (r *Router) RegisterHealthRoutes(checks ...HealthCheck) {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		healthy := true
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				healthy = false
				status[c.Name] = err.Error()
				r.logger.Warn("health check failed", zap.String("check", c.Name), zap.Error(err))
				continue
			}
			status[c.Name] = "ok"
		}
		if !healthy {
			status["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, FailWith("unhealthy", status))
			return
		}
		writeJSON(w, http.StatusOK, Ok(status))
	})
}

// RegisterCheckInRoutes
//
//	POST /checkin/api/v1/events/{event}/orgs/{org}/checkin
//	POST /checkin/api/v1/events/{event}/orgs/{org}/checkin/preview
//	GET  /checkin/api/v1/events/{event}/orgs/{org}/summary
//	GET  /checkin/api/v1/events/{event}/orgs/{org}/roster.xlsx
//	GET  /checkin/api/v1/events/{event}/occupancy
func (r *Router) RegisterCheckInRoutes(h *CheckInHandler) {
	r.Handle(checkInPrefix, func(w http.ResponseWriter, req *http.Request) {
		route, err := parseCheckInPath(req.URL.Path)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		method := http.MethodGet
		if route.op == opCheckIn || route.op == opPreview {
			method = http.MethodPost
		}
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		switch route.op {
		case opCheckIn:
			h.CheckIn(w, req, route.eventID, route.orgID)
		case opPreview:
			h.Preview(w, req, route.eventID, route.orgID)
		case opSummary:
			h.Summary(w, req, route.eventID, route.orgID)
		case opRoster:
			h.Roster(w, req, route.eventID, route.orgID)
		case opOccupancy:
			h.Occupancy(w, req, route.eventID)
		}
	})
}

type checkInOp int

const (
	opCheckIn checkInOp = iota + 1
	opPreview
	opSummary
	opRoster
	opOccupancy
)

type checkInRoute struct {
	eventID string
	orgID   string
	op      checkInOp
}

// parseCheckInPath splits the part after checkInPrefix
func parseCheckInPath(path string) (checkInRoute, error) {
	rest := strings.TrimPrefix(path, checkInPrefix)
	if rest == path {
		return checkInRoute{}, errBadPath
	}
	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	for _, p := range parts {
		if p == "" {
			return checkInRoute{}, errBadPath
		}
	}

	route := checkInRoute{eventID: parts[0]}
	switch {
	case len(parts) == 2 && parts[1] == "occupancy":
		route.op = opOccupancy
		return route, nil
	case len(parts) < 4 || parts[1] != "orgs":
		return checkInRoute{}, errBadPath
	}

	route.orgID = parts[2]
	switch strings.Join(parts[3:], "/") {
	case "checkin":
		route.op = opCheckIn
	case "checkin/preview":
		route.op = opPreview
	case "summary":
		route.op = opSummary
	case "roster.xlsx":
		route.op = opRoster
	default:
		return checkInRoute{}, errBadPath
	}
	return route, nil
}
