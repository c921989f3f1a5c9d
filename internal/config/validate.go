package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop startup from values that
// were auto-corrected or merely suspicious.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r *ValidationResult) AllErrors() []error {
	return append(append([]error(nil), r.Fatals...), r.Warnings...)
}

// ValidateTiered checks the config. Dangerous zero-values that would break
// the evaluation loop are clamped and reported as warnings; malformed
// identity and transport settings are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.EndpointID != "" && !uuidRegex.MatchString(c.EndpointID) {
		r.Fatals = append(r.Fatals, fmt.Errorf("endpoint_id %q is not a valid UUID", c.EndpointID))
	}

	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("server_url %q is not a valid URL: %w", c.ServerURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			r.Fatals = append(r.Fatals, fmt.Errorf("server_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.AuthToken != "" {
		for _, ch := range c.AuthToken {
			if unicode.IsControl(ch) {
				r.Fatals = append(r.Fatals, fmt.Errorf("auth_token contains control characters"))
				break
			}
		}
	}

	// Clamp the tick interval to a safe range; a zero interval would spin the
	// evaluation loop.
	if c.TickIntervalSeconds < 5 {
		r.Warnings = append(r.Warnings, fmt.Errorf("tick_interval_seconds %d is below minimum 5, clamping", c.TickIntervalSeconds))
		c.TickIntervalSeconds = 5
	} else if c.TickIntervalSeconds > 3600 {
		r.Warnings = append(r.Warnings, fmt.Errorf("tick_interval_seconds %d exceeds maximum 3600, clamping", c.TickIntervalSeconds))
		c.TickIntervalSeconds = 3600
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	// Clamp script execution concurrency to a safe range
	if c.ScriptWorkers < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("script_workers %d is below minimum 1, clamping", c.ScriptWorkers))
		c.ScriptWorkers = 1
	} else if c.ScriptWorkers > 100 {
		r.Warnings = append(r.Warnings, fmt.Errorf("script_workers %d exceeds maximum 100, clamping", c.ScriptWorkers))
		c.ScriptWorkers = 100
	}

	if c.ScriptQueueSize < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("script_queue_size %d is below minimum 1, clamping", c.ScriptQueueSize))
		c.ScriptQueueSize = 1
	} else if c.ScriptQueueSize > 10000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("script_queue_size %d exceeds maximum 10000, clamping", c.ScriptQueueSize))
		c.ScriptQueueSize = 10000
	}

	return r
}

// Validate runs the tiered validation, logs everything it found, and returns
// the combined error list.
func (c *Config) Validate() []error {
	result := c.ValidateTiered()
	for _, err := range result.AllErrors() {
		slog.Warn("config validation", "error", err)
	}
	return result.AllErrors()
}
