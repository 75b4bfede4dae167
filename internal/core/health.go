package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the total time spent probing dependencies.
const healthCheckTimeout = 5 * time.Second

// HealthProbe checks one dependency (database, email provider). Probes run
// concurrently; a probe that panics or exceeds the timeout degrades the
// report instead of failing the endpoint.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

// healthResponse is the JSON body of the /health endpoint.
type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type probeResult struct {
	name string
	err  error
}

// HandleHealth runs all registered probes concurrently and reports
// "ok" when every probe passes, "degraded" (503) otherwise. Probes that do
// not finish within the timeout are reported as timed out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(s.HealthProbes))
		wg      sync.WaitGroup
	)

	for _, probe := range s.HealthProbes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rvr := recover(); rvr != nil {
						err = fmt.Errorf("probe panicked: %v", rvr)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Build a partial response from whatever finished in time.
	}

	mu.Lock()
	completed := make(map[string]error, len(results))
	for _, res := range results {
		completed[res.name] = res.err
	}
	mu.Unlock()

	resp := healthResponse{
		Status:     "ok",
		Components: make(map[string]string, len(s.HealthProbes)),
	}
	status := http.StatusOK

	for _, probe := range s.HealthProbes {
		err, finished := completed[probe.Name()]
		switch {
		case !finished:
			resp.Components[probe.Name()] = "timeout"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		case err != nil:
			s.Logger.Warn("health probe failed", "probe", probe.Name(), "error", err.Error())
			resp.Components[probe.Name()] = "failing"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		default:
			resp.Components[probe.Name()] = "ok"
		}
	}

	JSON(w, r, status, resp)
}
