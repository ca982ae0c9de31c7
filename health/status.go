// Package health describes the health of the ingestion pipeline and its parts.
//
// A Status is healthy, degraded or unhealthy. The coordinator publishes one
// Status per constituent (schema, connection, ingest) into a Monitor and the
// HTTP gateway serves Monitor.AggregateHealth, where any unhealthy part makes
// the whole pipeline unhealthy and any degraded part (with none unhealthy)
// makes it degraded.
package health

import (
	"regexp"
	"strings"
	"time"
)

// Status levels
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|wss?|nats)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|passcode|token|secret|login)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a pipeline part or the whole pipeline
type Status struct {
	Component   string            `json:"component"`
	Healthy     bool              `json:"healthy"`
	Status      string            `json:"status"`
	Message     string            `json:"message"`
	Timestamp   time.Time         `json:"timestamp"`
	Details     map[string]string `json:"details,omitempty"`
	SubStatuses []Status          `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == LevelHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == LevelDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == LevelUnhealthy
}

// WithDetail returns a copy of the status with one detail attached
func (s Status) WithDetail(key, value string) Status {
	details := make(map[string]string, len(s.Details)+1)
	for k, v := range s.Details {
		details[k] = v
	}
	details[key] = value
	s.Details = details
	return s
}

// WithSubStatus adds a sub-status and returns a copy
func (s Status) WithSubStatus(subStatus Status) Status {
	// new backing array so copies never share appends
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, subStatus)
	return s
}

// FromError returns a healthy status with okMessage when err is nil, otherwise
// an unhealthy status carrying the sanitized error text.
func FromError(component, okMessage string, err error) Status {
	if err == nil {
		return NewHealthy(component, okMessage)
	}
	return NewUnhealthy(component, Sanitize(err.Error()))
}

// Sanitize strips URLs, paths, addresses and credentials from a message
// before it is exposed on the health endpoint.
func Sanitize(msg string) string {
	if msg == "" {
		return ""
	}

	// URLs first, they contain paths
	out := urlRegex.ReplaceAllString(msg, "[URL]")
	out = unixPathRegex.ReplaceAllString(out, "[PATH]")
	out = ipAddrRegex.ReplaceAllString(out, "[IP]")
	out = portRegex.ReplaceAllString(out, "[PORT]")

	lower := strings.ToLower(out)
	for _, word := range []string{"password", "passcode", "token", "secret", "login"} {
		if strings.Contains(lower, word) {
			out = credentialRegex.ReplaceAllString(out, "[REDACTED]")
			break
		}
	}
	return out
}
