package diff

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SecurityPolicy carries the tables the validator's content and security
// checks run against. The zero value is not usable; start from
// DefaultSecurityPolicy or LoadPolicy.
type SecurityPolicy struct {
	// SystemPathPrefixes are absolute prefixes a diff may never target.
	SystemPathPrefixes []string `json:"systemPathPrefixes"`
	// SafeExtensions are the markup-like extensions expected of targets;
	// anything else earns a warning, not an error.
	SafeExtensions []string `json:"safeExtensions"`
	// ExecutableExtensions mark script-like targets worth flagging.
	ExecutableExtensions []string `json:"executableExtensions"`
	// DangerousContentPatterns are case-insensitive regular expressions
	// matched against added lines.
	DangerousContentPatterns []string `json:"dangerousContentPatterns"`

	compileOnce sync.Once
	compiled    []*regexp.Regexp
	compileErr  error
}

// DefaultSecurityPolicy returns the built-in policy for markup repair
// pipelines.
func DefaultSecurityPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		SystemPathPrefixes: []string{
			"/etc/", "/var/", "/usr/", "/bin/", "/sbin/", "/proc/", "/sys/",
		},
		SafeExtensions: []string{
			".html", ".htm", ".css", ".js", ".txt", ".md", ".xml", ".json",
		},
		ExecutableExtensions: []string{
			".py", ".js", ".php", ".rb", ".sh", ".bat", ".exe",
		},
		DangerousContentPatterns: []string{
			`<script[^>]*>`,
			`javascript:`,
			`data:`,
			`vbscript:`,
		},
	}
}

var (
	policySchemaLoader     gojsonschema.JSONLoader
	policySchemaLoaderOnce sync.Once
)

// policySchema describes the JSON shape accepted by LoadPolicy. Every field
// is optional; absent fields fall back to the default policy.
func policySchema() map[string]any {
	stringArray := func(description string) map[string]any {
		return map[string]any{
			"type":        "array",
			"description": description,
			"items":       map[string]any{"type": "string", "minLength": 1},
		}
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"systemPathPrefixes":       stringArray("absolute path prefixes rejected as system targets"),
			"safeExtensions":           stringArray("extensions considered markup-like"),
			"executableExtensions":     stringArray("extensions flagged as executable scripts"),
			"dangerousContentPatterns": stringArray("case-insensitive regexes matched against added lines"),
		},
	}
}

func loadPolicySchema() gojsonschema.JSONLoader {
	policySchemaLoaderOnce.Do(func() {
		policySchemaLoader = gojsonschema.NewGoLoader(policySchema())
	})
	return policySchemaLoader
}

// LoadPolicy reads a JSON policy file, validates it against the policy
// schema and merges it over the defaults. Schema violations are reported as
// a single error joining every issue.
func LoadPolicy(path string) (*SecurityPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot read policy %s: %v", path, err), Path: path}
	}

	result, err := gojsonschema.Validate(loadPolicySchema(), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &Error{Code: CodePolicy, Message: fmt.Sprintf("policy %s is not valid JSON: %v", path, err), Path: path}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &Error{Code: CodePolicy, Message: strings.Join(issues, "; "), Path: path}
	}

	var overlay SecurityPolicy
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return nil, &Error{Code: CodePolicy, Message: fmt.Sprintf("cannot decode policy %s: %v", path, err), Path: path}
	}

	policy := DefaultSecurityPolicy()
	if len(overlay.SystemPathPrefixes) > 0 {
		policy.SystemPathPrefixes = overlay.SystemPathPrefixes
	}
	if len(overlay.SafeExtensions) > 0 {
		policy.SafeExtensions = overlay.SafeExtensions
	}
	if len(overlay.ExecutableExtensions) > 0 {
		policy.ExecutableExtensions = overlay.ExecutableExtensions
	}
	if len(overlay.DangerousContentPatterns) > 0 {
		policy.DangerousContentPatterns = overlay.DangerousContentPatterns
	}

	if _, err := policy.contentPatterns(); err != nil {
		return nil, &Error{Code: CodePolicy, Message: err.Error(), Path: path}
	}
	return policy, nil
}

// contentPatterns compiles DangerousContentPatterns once per policy.
func (p *SecurityPolicy) contentPatterns() ([]*regexp.Regexp, error) {
	p.compileOnce.Do(func() {
		for _, pattern := range p.DangerousContentPatterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				p.compileErr = fmt.Errorf("invalid content pattern %q: %w", pattern, err)
				return
			}
			p.compiled = append(p.compiled, re)
		}
	})
	if p.compileErr != nil {
		return nil, p.compileErr
	}
	return p.compiled, nil
}
