package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/iho/ledgerd/internal/domain"
)

// policyFile is the layout of RETRY_POLICY_FILE.
//
//	policies:
//	  peer-to-peer:
//	    max_retries: 8
//	    max_delay: 2m
type policyFile struct {
	Policies map[string]policyOverride `yaml:"policies"`
}

type policyOverride struct {
	MaxRetries        *int           `yaml:"max_retries"`
	InitialDelay      *time.Duration `yaml:"initial_delay"`
	MaxDelay          *time.Duration `yaml:"max_delay"`
	BackoffMultiplier *float64       `yaml:"backoff_multiplier"`
	RetryableErrors   []string       `yaml:"retryable_errors"`
}

// LoadPolicies returns the default policy table with the overrides from
// path applied. An empty path returns the defaults.
func LoadPolicies(path string) (domain.PolicyTable, error) {
	table := domain.DefaultPolicyTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read retry policy file: %w", err)
	}

	return ParsePolicies(data, table)
}

// ParsePolicies applies YAML overrides on top of base.
func ParsePolicies(data []byte, base domain.PolicyTable) (domain.PolicyTable, error) {
	var file policyFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse retry policy file: %w", err)
	}

	table := make(domain.PolicyTable, len(base)+len(file.Policies))
	for k, v := range base {
		table[k] = v
	}

	for workerType, o := range file.Policies {
		p := table[workerType]
		if o.MaxRetries != nil {
			p.MaxRetries = *o.MaxRetries
		}
		if o.InitialDelay != nil {
			p.InitialDelay = *o.InitialDelay
		}
		if o.MaxDelay != nil {
			p.MaxDelay = *o.MaxDelay
		}
		if o.BackoffMultiplier != nil {
			p.BackoffMultiplier = *o.BackoffMultiplier
		}
		if o.RetryableErrors != nil {
			p.RetryableErrors = o.RetryableErrors
		}

		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("policy %s: %w", workerType, err)
		}
		table[workerType] = p
	}

	return table, nil
}
