package engine

// Status is the aggregate dependency health. It is advisory only and never
// gates request handling.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Health reports per-dependency probe results and the aggregate status:
// healthy when every probe responds, degraded when some fail, unhealthy
// when all fail.
type Health struct {
	Status   Status            `json:"status"`
	Checks   map[string]bool   `json:"checks"`
	Failures map[string]string `json:"failures,omitempty"`
}

// HealthCheck probes the relational store and the search engine
// independently.
func (e *Engine) HealthCheck() *Health {
	h := &Health{
		Checks:   make(map[string]bool),
		Failures: make(map[string]string),
	}

	if err := e.store.Ping(); err != nil {
		h.Checks["store"] = false
		h.Failures["store"] = err.Error()
	} else {
		h.Checks["store"] = true
	}

	if _, err := e.search.Count(); err != nil {
		h.Checks["search"] = false
		h.Failures["search"] = err.Error()
	} else {
		h.Checks["search"] = true
	}

	healthy := 0
	for _, ok := range h.Checks {
		if ok {
			healthy++
		}
	}
	switch healthy {
	case len(h.Checks):
		h.Status = StatusHealthy
	case 0:
		h.Status = StatusUnhealthy
	default:
		h.Status = StatusDegraded
	}

	if len(h.Failures) == 0 {
		h.Failures = nil
	}
	return h
}
