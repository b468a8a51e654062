package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// identityKeyWidth is the number of hex characters kept from the digest.
const identityKeyWidth = 16

// fingerprintPayload is the canonical serialisation shape. Field order is
// fixed by the struct, the model list is sorted, and tuning is the suite's
// default prototype with submission overrides already merged - so an omitted
// optional parameter and one explicitly set to its default hash identically.
type fingerprintPayload struct {
	TestSuite     string      `json:"test_suite"`
	DeploymentURL string      `json:"deployment_url"`
	APIKey        string      `json:"api_key"`
	Models        []string    `json:"models"`
	Tuning        interface{} `json:"tuning"`
}

// Fingerprint derives the identity key of a submission from its semantic
// parameters. Two submissions with identical semantic content produce the
// same key regardless of model ordering or tuning field presentation.
func Fingerprint(request *Request, tuning interface{}) (string, error) {
	if err := request.Validate(); err != nil {
		return "", err
	}
	models := make([]string, len(request.Models))
	copy(models, request.Models)
	sort.Strings(models)

	payload := fingerprintPayload{
		TestSuite:     request.TestSuite,
		DeploymentURL: request.DeploymentURL,
		APIKey:        request.APIKey,
		Models:        models,
		Tuning:        tuning,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize request: %w", err)
	}
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])[:identityKeyWidth], nil
}
