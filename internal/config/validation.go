package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
)

// ValidationError describes one problem with a configuration value.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds errors that make the configuration unusable and
// warnings that only deserve a log line.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)
	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks every section and also reports
// warnings, such as content roots that do not exist yet.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&config.Server, result)
	validateContent(&config.Content, result)
	validateRedirects(config.Redirects, result)

	if config.Cache.MaxAge < 0 {
		result.addError("cache.max_age", config.Cache.MaxAge, "max age cannot be negative")
	}
	if config.Watch.Debounce < 0 {
		result.addError("watch.debounce", config.Watch.Debounce, "debounce cannot be negative")
	}
	if config.Output.Enabled && strings.TrimSpace(config.Output.Path) == "" {
		result.addError("output.path", config.Output.Path, "output is enabled but no path is set")
	}
	if config.Templates.Path != "" && !pathExists(config.Templates.Path) {
		result.addWarning("templates.path", config.Templates.Path, "templates directory does not exist",
			"Create it and add a page.html layout")
	}

	return result
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		return &result.Errors[0]
	}
	return nil
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	// 0 lets the OS pick a port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access")
	}
	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error())
		}
	}
}

func validateContent(config *ContentConfig, result *ValidationResult) {
	if config.Concurrency < 0 {
		result.addError("content.concurrency", config.Concurrency, "concurrency cannot be negative")
	}

	kinds := make(map[string]bool)
	for i, pt := range config.PageTypes {
		field := fmt.Sprintf("content.page_types[%d]", i)
		if strings.TrimSpace(pt.Path) == "" {
			result.addError(field+".path", pt.Path, "page type needs a path")
		} else if !pathExists(pt.Path) {
			result.addWarning(field+".path", pt.Path, "content directory does not exist")
		}
		if strings.TrimSpace(pt.DefaultTemplate) == "" {
			result.addError(field+".default_template", pt.DefaultTemplate, "page type needs a default template")
		}
		if pt.Kind != "" && kinds[pt.Kind] {
			result.addWarning(field+".kind", pt.Kind, "page type kind is declared twice")
		}
		kinds[pt.Kind] = true
	}

	for i, include := range config.StaticIncludes {
		if strings.TrimSpace(include) == "" {
			result.addError(fmt.Sprintf("content.static_includes[%d]", i), include, "empty static include")
		}
	}
}

func validateRedirects(redirects []RedirectConfig, result *ValidationResult) {
	seen := make(map[string]bool, len(redirects))
	for i, r := range redirects {
		field := fmt.Sprintf("redirects[%d]", i)
		if !strings.HasPrefix(r.From, "/") {
			result.addError(field+".from", r.From, "redirect source must be an absolute route")
		}
		if r.To == "" {
			result.addError(field+".to", r.To, "redirect target is empty")
		}
		switch r.Type {
		case RedirectPermanent, RedirectTemporary:
		default:
			result.addError(field+".type", r.Type,
				fmt.Sprintf("unknown redirect type %q", r.Type),
				"Use permanent or temporary")
		}
		if seen[r.From] {
			result.addError(field+".from", r.From, "duplicate redirect source")
		}
		seen[r.From] = true
	}
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %q", host)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
