// Package alert sends run notifications to chat providers.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cameronsjo/coxswain/internal/reconcile"
)

// Severity levels for alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert represents a notification to send.
type Alert struct {
	Title    string            // Short title/subject
	Message  string            // Full message body
	Severity Severity          // Alert severity
	Source   string            // What generated this (e.g., "run", "doctor")
	Metadata map[string]string // Additional context (repo, env, run id)
}

// Provider interface for alert backends.
type Provider interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
	IsConfigured() bool
}

// Manager handles multiple alert providers.
type Manager struct {
	providers []Provider
}

// NewManager creates a new alert manager.
func NewManager() *Manager {
	return &Manager{providers: make([]Provider, 0)}
}

// AddProvider adds a provider if it is configured.
func (m *Manager) AddProvider(p Provider) {
	if p.IsConfigured() {
		m.providers = append(m.providers, p)
	}
}

// Send sends an alert to all configured providers.
// Returns an aggregated error if any provider fails.
func (m *Manager) Send(ctx context.Context, alert *Alert) error {
	if len(m.providers) == 0 {
		return nil
	}

	var errs []error
	for _, p := range m.providers {
		if err := p.Send(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("alert errors: %w", errors.Join(errs...))
	}
	return nil
}

// HasProviders returns true if at least one provider is configured.
func (m *Manager) HasProviders() bool {
	return len(m.providers) > 0
}

// ProviderNames returns the names of all configured providers.
func (m *Manager) ProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// ShouldNotify reports whether a run deserves an alert. Failed runs always
// do; successful runs only when onSuccess is set and something was built.
func ShouldNotify(r *reconcile.Report, onSuccess bool) bool {
	if r == nil {
		return false
	}
	if !r.OK() {
		return true
	}
	return onSuccess && r.Count(reconcile.StatusBuilt) > 0
}

// FromReport builds the alert describing a finished run.
func FromReport(r *reconcile.Report) *Alert {
	a := &Alert{
		Source: "run",
		Metadata: map[string]string{
			"repo":   r.Repo,
			"env":    r.Env,
			"mode":   r.Mode,
			"run_id": r.RunID,
		},
	}

	var lines []string
	lines = append(lines, r.Summary())
	for _, o := range r.Outcomes {
		switch o.Status {
		case reconcile.StatusBuilt:
			lines = append(lines, fmt.Sprintf("built %s %s -> %s", o.App, o.Previous, o.Version))
		case reconcile.StatusFailed:
			lines = append(lines, fmt.Sprintf("failed %s: %v", o.App, o.Err))
		}
	}
	a.Message = strings.Join(lines, "\n")

	switch {
	case r.Err != nil:
		a.Title = fmt.Sprintf("Deploy aborted: %s/%s", r.Repo, r.Env)
		a.Severity = SeverityCritical
		a.Metadata["error"] = r.Err.Error()
	case r.Count(reconcile.StatusFailed) > 0:
		a.Title = fmt.Sprintf("Deploy finished with failures: %s/%s", r.Repo, r.Env)
		a.Severity = SeverityError
	default:
		a.Title = fmt.Sprintf("Deploy succeeded: %s/%s", r.Repo, r.Env)
		a.Severity = SeverityInfo
	}
	if r.Message != "" {
		a.Metadata["commit"] = r.Message
	}
	return a
}

// SendRunReport notifies providers about a run when ShouldNotify allows it.
func (m *Manager) SendRunReport(ctx context.Context, r *reconcile.Report, onSuccess bool) error {
	if !ShouldNotify(r, onSuccess) {
		return nil
	}
	return m.Send(ctx, FromReport(r))
}

// SendDoctorAlert sends a health check alert.
func (m *Manager) SendDoctorAlert(ctx context.Context, severity Severity, issues []string) error {
	var title string
	switch severity {
	case SeverityCritical:
		title = "CRITICAL: Health Check Failed"
	case SeverityError:
		title = "Health Check Errors"
	case SeverityWarning:
		title = "Health Check Warnings"
	default:
		title = "Health Check Complete"
	}

	return m.Send(ctx, &Alert{
		Title:    title,
		Message:  strings.Join(issues, "\n"),
		Severity: severity,
		Source:   "doctor",
		Metadata: map[string]string{"issue_count": fmt.Sprintf("%d", len(issues))},
	})
}
