// Package target is a small demo HTTP service with predictable
// endpoints: a health probe, JSON calculators, a deliberately slow
// route, a deliberately failing route, and a fake user lookup. The
// built-in scenarios drive it when no external base URL is given, so a
// fresh checkout can produce a meaningful run against localhost.
package target

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// Config tunes the demo service's simulated behavior.
type Config struct {
	// ServiceName is reported by the health endpoint.
	ServiceName string

	// SlowDelay is how long /simulate/slow stalls before answering.
	SlowDelay time.Duration

	// UserDelay simulates the database lookup behind /user/{id}.
	UserDelay time.Duration
}

// DefaultConfig matches the delays the built-in scenarios are tuned
// against.
func DefaultConfig() Config {
	return Config{
		ServiceName: "drover-target",
		SlowDelay:   2 * time.Second,
		UserDelay:   100 * time.Millisecond,
	}
}

type service struct {
	cfg Config
}

// Handler assembles the demo service. Routes reject wrong methods with
// 405 through the mux patterns; CORS headers are served so the target
// can also back browser-based experiments.
func Handler(cfg Config) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "drover-target"
	}
	s := &service{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /calculate/add", s.handleAdd)
	mux.HandleFunc("POST /calculate/divide", s.handleDivide)
	mux.HandleFunc("GET /simulate/slow", s.handleSlow)
	mux.HandleFunc("GET /simulate/error", s.handleError)
	mux.HandleFunc("GET /user/{id}", s.handleUser)

	return cors.Default().Handler(requestLog(mux))
}

// NewServer wraps Handler in an http.Server ready to ListenAndServe.
func NewServer(addr string, cfg Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

const rootPage = `<!DOCTYPE html>
<html>
<head><title>drover demo target</title></head>
<body>
<h1>Drover Demo Target</h1>
<p>A small service with predictable endpoints for load scenarios:</p>
<ul>
  <li><code>GET /health</code> - health probe</li>
  <li><code>POST /calculate/add</code> - JSON calculator</li>
  <li><code>POST /calculate/divide</code> - JSON calculator, 400 on division by zero</li>
  <li><code>GET /simulate/slow</code> - deliberately slow response</li>
  <li><code>GET /simulate/error</code> - deliberate 500</li>
  <li><code>GET /user/{id}</code> - fake user lookup</li>
</ul>
</body>
</html>
`

func (s *service) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, rootPage)
}

func (s *service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": s.cfg.ServiceName,
	})
}

type calculateRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type calculateResponse struct {
	Result    float64 `json:"result"`
	Operation string  `json:"operation"`
}

func (s *service) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{
		Result:    req.A + req.B,
		Operation: "addition",
	})
}

func (s *service) handleDivide(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.B == 0 {
		http.Error(w, "Cannot divide by zero", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{
		Result:    req.A / req.B,
		Operation: "division",
	})
}

func (s *service) handleSlow(w http.ResponseWriter, r *http.Request) {
	time.Sleep(s.cfg.SlowDelay)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Slow operation completed",
		"duration_seconds": s.cfg.SlowDelay.Seconds(),
	})
}

func (s *service) handleError(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Simulated error occurred", http.StatusInternalServerError)
}

func (s *service) handleUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	// Simulate the database lookup.
	time.Sleep(s.cfg.UserDelay)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"name":  fmt.Sprintf("User %d", id),
		"email": fmt.Sprintf("user%d@example.com", id),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("target response write failed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLog emits one debug line per request. Debug level keeps a
// full-rate load run from drowning its own output.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}
		if runID := r.Header.Get("X-Run-Id"); runID != "" {
			fields["run_id"] = runID
		}
		log.WithFields(fields).Debug("target request")
	})
}
