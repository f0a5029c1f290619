package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jkramsay/flat-file-manager/internal/ddl"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a setting that works but is probably not
	// what the operator wants.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding.
//
// Path is a dotted path into the config (e.g. "warehouse.dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Lint performs cross-field checks that struct tags cannot express. It does
// not mutate c.
func Lint(c *Config) []Issue {
	var issues []Issue
	issues = append(issues, lintLoader(c.Loader)...)
	issues = append(issues, lintWarehouse(c.Warehouse)...)
	issues = append(issues, lintMetrics(c.Metrics)...)
	return issues
}

func lintLoader(l LoaderConfig) []Issue {
	d := l.Delimiter
	if d == "" || d == `\t` || d == "tab" {
		return nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return []Issue{{
			Severity: SeverityError,
			Path:     "loader.delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", d),
		}}
	}
	if d == `"` || d == "\n" || d == "\r" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "loader.delimiter",
			Message:  fmt.Sprintf("delimiter %q collides with CSV quoting or line endings", d),
		}}
	}
	return nil
}

func lintWarehouse(w WarehouseConfig) []Issue {
	var issues []Issue
	if w.ApplyDDL && strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn",
			Message:  "apply_ddl requires a dsn",
		})
	}
	if strings.TrimSpace(w.IAMRole) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.iam_role",
			Message:  "iam_role is empty; rendered COPY statements will not run as-is",
		})
	}
	if ms, ok := ddl.ParseMergeStrategy(w.MergeStrategy); !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.merge_strategy",
			Message:  fmt.Sprintf("unknown merge strategy %q", w.MergeStrategy),
		})
	} else if (ms == ddl.MergeUniqueColumnConstraint || ms == ddl.MergeReplace) && len(w.UniqueColumns) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.unique_columns",
			Message:  fmt.Sprintf("merge strategy %s requires unique_columns", ms),
		})
	}
	if w.CopyPrefix != "" && !strings.HasPrefix(w.CopyPrefix, "s3://") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.copy_prefix",
			Message:  fmt.Sprintf("copy_prefix %q is not an s3:// URL", w.CopyPrefix),
		})
	}
	return issues
}

func lintMetrics(m MetricsConfig) []Issue {
	var issues []Issue
	switch m.Backend {
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend requires datadog_addr",
			})
		}
	}
	if m.Backend != "none" && strings.TrimSpace(m.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.job",
			Message:  "job is empty; metrics will be hard to attribute",
		})
	}
	return issues
}
