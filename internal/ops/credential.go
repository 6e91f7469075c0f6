package ops

import (
	"strings"

	"snipsense/internal/errors"
)

// CredentialSetInput contains parameters for the CredentialSet operation.
type CredentialSetInput struct {
	Value string // required
}

// CredentialSetOutput contains the result of the CredentialSet operation.
type CredentialSetOutput struct {
	Message string `json:"message"`
}

// CredentialSet stores the API credential.
func CredentialSet(env *Env, input CredentialSetInput) (*CredentialSetOutput, error) {
	value := strings.TrimSpace(input.Value)
	if value == "" {
		return nil, errors.NewInvalidRequest("credential must not be empty")
	}
	if err := env.Secrets.Set(value); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return &CredentialSetOutput{Message: "Credential stored"}, nil
}

// CredentialDeleteInput contains parameters for the CredentialDelete operation.
type CredentialDeleteInput struct{}

// CredentialDeleteOutput contains the result of the CredentialDelete operation.
type CredentialDeleteOutput struct {
	Message string `json:"message"`
}

// CredentialDelete removes the stored API credential.
func CredentialDelete(env *Env, input CredentialDeleteInput) (*CredentialDeleteOutput, error) {
	if err := env.Secrets.Delete(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return &CredentialDeleteOutput{Message: "Credential deleted"}, nil
}

// CredentialStatusInput contains parameters for the CredentialStatus operation.
type CredentialStatusInput struct{}

// CredentialStatusOutput reports whether a credential is configured. The
// credential itself is never returned.
type CredentialStatusOutput struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider"`
}

// CredentialStatus reports whether an API credential is configured.
func CredentialStatus(env *Env, input CredentialStatusInput) (*CredentialStatusOutput, error) {
	return &CredentialStatusOutput{
		Configured: env.Secrets.Has(),
		Provider:   env.Cfg.Provider,
	}, nil
}
