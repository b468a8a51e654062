package types

import "context"

// Target is the deployment a suite runs against.
type Target struct {
	DeploymentURL string   `json:"deployment_url"`
	APIKey        string   `json:"api_key"`
	Models        []string `json:"models"`
}

// Suite is the contract every runnable test suite implements.
//
// Tuning returns a pointer to a fresh struct holding the suite's default
// parameters, or nil when the suite takes none; submission overrides are
// merged onto it before the run starts and the merged value is handed back
// to Run. Run blocks for the whole test duration and must honour ctx
// cancellation.
type Suite interface {
	Name() string
	Tuning() interface{}
	Run(ctx context.Context, target *Target, tuning interface{}) (*Result, error)
}
