// Package model defines the submission descriptor, its identity-key
// fingerprinting and (in sub-packages) the run lifecycle record and the
// suite contract.
package model
