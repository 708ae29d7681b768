package config

import "os"

// CredentialSource represents where a credential comes from.
type CredentialSource string

const (
	CredentialSourceEnv    CredentialSource = "env"
	CredentialSourceConfig CredentialSource = "config"
	CredentialSourceNone   CredentialSource = "none"
)

// CredentialStatus represents the status of one provider credential.
type CredentialStatus struct {
	Name   string           `json:"name"`
	Source CredentialSource `json:"source"`
	IsSet  bool             `json:"is_set"`
	Masked string           `json:"masked,omitempty"` // e.g., "abc...xyz"
}

// CheckCredentials returns the status of every credential a provider may
// need. PVGIS is keyless and does not appear here.
func CheckCredentials(cfg *Config) []CredentialStatus {
	return []CredentialStatus{
		checkCredential("NSRDB API Key", cfg.Providers.NSRDB.APIKey, "PVBENCH_PROVIDERS_NSRDB_API_KEY", "NREL_API_KEY"),
		checkCredential("NSRDB Email", cfg.Providers.NSRDB.Email, "PVBENCH_PROVIDERS_NSRDB_EMAIL", "NREL_USER_EMAIL"),
		checkCredential("MinIO Secret Key", cfg.Cache.MinIO.SecretKey, "PVBENCH_CACHE_MINIO_SECRET_KEY"),
	}
}

// checkCredential checks if a credential is set and where it came from.
func checkCredential(name, value string, envVars ...string) CredentialStatus {
	status := CredentialStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value == "" {
		status.Source = CredentialSourceNone
		return status
	}

	status.Source = CredentialSourceConfig
	for _, env := range envVars {
		if os.Getenv(env) != "" {
			status.Source = CredentialSourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks a credential for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
