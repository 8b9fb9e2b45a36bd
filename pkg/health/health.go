// Package health implements the readiness indicators exposed under
// /actuator/health: allowlist refresh state and certificate validity.
package health

import (
	"net/http"
	"sort"
)

type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusUnknown Status = "UNKNOWN"
)

// severity orders statuses for aggregation: the most severe component wins,
// UNKNOWN only when nothing else is reported.
var severity = map[Status]int{StatusDown: 3, StatusUp: 2, StatusUnknown: 1}

// HTTPStatus maps a status to the response code of the health endpoint.
func (s Status) HTTPStatus() int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

type Result struct {
	Status  Status                 `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type Indicator interface {
	Health() Result
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func() Result

func (f IndicatorFunc) Health() Result { return f() }

// Report is the aggregated health document.
type Report struct {
	Status     Status            `json:"status"`
	Components map[string]Result `json:"components,omitempty"`
}

// Registry holds the named indicators that make up the aggregate.
type Registry struct {
	indicators map[string]Indicator
}

func NewRegistry() *Registry {
	return &Registry{indicators: map[string]Indicator{}}
}

func (r *Registry) Register(name string, indicator Indicator) {
	r.indicators[name] = indicator
}

// Check evaluates every indicator. An empty registry is UP.
func (r *Registry) Check() Report {
	report := Report{Status: StatusUp, Components: make(map[string]Result, len(r.indicators))}
	if len(r.indicators) == 0 {
		return report
	}
	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}
	sort.Strings(names)

	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		result := r.indicators[name].Health()
		report.Components[name] = result
		statuses = append(statuses, result.Status)
	}
	report.Status = Aggregate(statuses...)
	return report
}

// Aggregate returns the most severe of statuses, UNKNOWN for none.
func Aggregate(statuses ...Status) Status {
	out := StatusUnknown
	for _, s := range statuses {
		if severity[s] > severity[out] {
			out = s
		}
	}
	return out
}
