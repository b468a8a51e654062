package secret

import (
	"context"
	"fmt"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	"github.com/viant/toolbox"
)

// Ref points at a sensitive configuration value: either an inline literal or
// an encrypted resource decoded with viant/scy at startup.
type Ref struct {
	// Value is the inline literal; when set no secret store is consulted.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// URL locates the encrypted secret (file, cloud bucket, secret manager).
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Key is the decryption key, e.g. "blowfish://default".
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
	// Target is the credential type of a structured secret ('basic',
	// 'generic', ...); empty or 'raw' means plain content.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Field selects an entry of a structured secret.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// IsEmpty reports whether the ref carries neither a literal nor a location.
func (r *Ref) IsEmpty() bool {
	return r == nil || (r.Value == "" && r.URL == "")
}

// Service resolves secret references using viant/scy.
type Service struct {
	scyService *scy.Service
}

// New creates a secret resolver.
func New() *Service {
	return &Service{scyService: scy.New()}
}

// Resolve returns the plain value behind the ref.
func (s *Service) Resolve(ctx context.Context, ref *Ref) (string, error) {
	if ref.IsEmpty() {
		return "", nil
	}
	if ref.Value != "" {
		return ref.Value, nil
	}

	var target interface{}
	if ref.Target != "" && ref.Target != "raw" {
		targetType, err := cred.TargetType(ref.Target)
		if err != nil {
			return "", fmt.Errorf("invalid target type '%s': %w", ref.Target, err)
		}
		if targetType != nil {
			target = targetType
		}
	}

	resource := scy.NewResource(target, ref.URL, ref.Key)
	secret, err := s.scyService.Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load secret from %s: %w", ref.URL, err)
	}

	if !secret.IsPlain && secret.Target != nil {
		aMap := map[string]interface{}{}
		if err := toolbox.DefaultConverter.AssignConverted(&aMap, secret.Target); err != nil {
			return "", fmt.Errorf("failed to convert secret data: %w", err)
		}
		aMap = toolbox.DeleteEmptyKeys(aMap)
		if ref.Field == "" {
			return "", fmt.Errorf("secret %s is structured, a field selector is required", ref.URL)
		}
		value, ok := aMap[ref.Field]
		if !ok {
			return "", fmt.Errorf("secret %s has no field %q", ref.URL, ref.Field)
		}
		return toolbox.AsString(value), nil
	}
	return secret.String(), nil
}
