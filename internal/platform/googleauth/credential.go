// Package googleauth exchanges a Google service-account identity for bearer
// tokens scoped to the Firebase messaging API.
package googleauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Credential is the service-account key material. It is loaded once at
// startup and never modified afterwards.
type Credential struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// ParseCredential decodes a service-account JSON document.
func ParseCredential(data []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("failed to parse service account json: %w", err)
	}

	var missing []error
	if c.ClientEmail == "" {
		missing = append(missing, errors.New("client_email is required"))
	}
	if c.PrivateKey == "" {
		missing = append(missing, errors.New("private_key is required"))
	}
	if c.ProjectID == "" {
		missing = append(missing, errors.New("project_id is required"))
	}
	if len(missing) > 0 {
		return Credential{}, fmt.Errorf("invalid service account: %w", errors.Join(missing...))
	}
	return c, nil
}

// LoadCredential reads and parses a service-account file.
func LoadCredential(path string) (Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read service account file %q: %w", path, err)
	}
	return ParseCredential(data)
}
