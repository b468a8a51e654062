package model

import (
	"fmt"
	"strings"

	"github.com/BerriAI/litellm-observatory/model/types"
)

// Request is an inbound test submission: which suite to run, against which
// deployment, with which models, plus optional suite-specific tuning
// parameters. Tuning keys a suite does not declare are ignored.
type Request struct {
	TestSuite     string                 `json:"test_suite" yaml:"test_suite"`
	DeploymentURL string                 `json:"deployment_url" yaml:"deployment_url"`
	APIKey        string                 `json:"api_key" yaml:"api_key"`
	Models        []string               `json:"models" yaml:"models"`
	Tuning        map[string]interface{} `json:"tuning,omitempty" yaml:"tuning,omitempty"`
}

// Validate checks the required fields.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("request was nil")
	}
	if strings.TrimSpace(r.TestSuite) == "" {
		return fmt.Errorf("testSuite was empty")
	}
	if strings.TrimSpace(r.DeploymentURL) == "" {
		return fmt.Errorf("deploymentURL was empty")
	}
	if strings.TrimSpace(r.APIKey) == "" {
		return fmt.Errorf("apiKey was empty")
	}
	if len(r.Models) == 0 {
		return fmt.Errorf("models was empty")
	}
	return nil
}

// Target returns the deployment target the suite runs against.
func (r *Request) Target() *types.Target {
	return &types.Target{
		DeploymentURL: strings.TrimRight(r.DeploymentURL, "/"),
		APIKey:        r.APIKey,
		Models:        r.Models,
	}
}
