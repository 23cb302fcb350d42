package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/ledgerd/internal/domain"
	"github.com/iho/ledgerd/internal/infrastructure/config"
)

func TestLoadPoliciesWithoutFile(t *testing.T) {
	table, err := config.LoadPolicies("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := table.Get(domain.WorkerTypePeerToPeer)
	if err != nil || p.MaxRetries != 5 {
		t.Fatalf("expected default peer-to-peer policy, got %+v err=%v", p, err)
	}
}

func TestLoadPoliciesMergesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	data := []byte(`
policies:
  peer-to-peer:
    max_retries: 8
    max_delay: 2m
  payroll:
    max_retries: 4
    initial_delay: 30s
    max_delay: 1h
    backoff_multiplier: 2
    retryable_errors: [TIMEOUT]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	table, err := config.LoadPolicies(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p2p, _ := table.Get(domain.WorkerTypePeerToPeer)
	if p2p.MaxRetries != 8 || p2p.MaxDelay != 2*time.Minute || p2p.InitialDelay != time.Second {
		t.Fatalf("unexpected merged policy %+v", p2p)
	}

	payroll, err := table.Get("payroll")
	if err != nil || payroll.InitialDelay != 30*time.Second || len(payroll.RetryableErrors) != 1 {
		t.Fatalf("unexpected new policy %+v err=%v", payroll, err)
	}

	if _, err := table.Get(domain.WorkerTypeSubscription); err != nil {
		t.Fatalf("expected untouched defaults to survive: %v", err)
	}

	if domain.DefaultPolicyTable()[domain.WorkerTypePeerToPeer].MaxRetries != 5 {
		t.Fatalf("defaults must not be mutated")
	}
}

func TestParsePoliciesRejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"incomplete new type", "policies:\n  payroll:\n    max_retries: 3\n"},
		{"zero retries", "policies:\n  peer-to-peer:\n    max_retries: 0\n"},
		{"shrinking multiplier", "policies:\n  subscription:\n    backoff_multiplier: 0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParsePolicies([]byte(tt.data), domain.DefaultPolicyTable())
			if !errors.Is(err, domain.ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestParsePoliciesRejectsUnknownFields(t *testing.T) {
	_, err := config.ParsePolicies([]byte("policies:\n  peer-to-peer:\n    retries: 3\n"), domain.DefaultPolicyTable())
	if err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadPoliciesMissingFile(t *testing.T) {
	if _, err := config.LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
