package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/pkg/config"
)

// Keys read from the KV v2 secret at vault.path.
const (
	KeyJWTSecret   = "jwt_secret"
	KeyModelAPIKey = "model_service_api_key"
	KeyDatabaseURL = "database_url"
)

type SecretManager struct {
	client *api.Client
	path   string
	log    *zap.Logger
}

func NewSecretManager(cfg config.VaultConfig, log *zap.Logger) (*SecretManager, error) {
	vc := api.DefaultConfig()
	vc.Address = cfg.Address

	client, err := api.NewClient(vc)
	if err != nil {
		return nil, err
	}

	client.SetToken(cfg.Token)

	return &SecretManager{client: client, path: cfg.Path, log: log}, nil
}

// Secrets returns the key/value pairs stored at the configured path.
func (sm *SecretManager) Secrets(ctx context.Context) (map[string]string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, sm.path)
	if err != nil {
		return nil, fmt.Errorf("read vault secret %s: %w", sm.path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", sm.path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vault secret %s is not a kv v2 secret", sm.path)
	}

	out := make(map[string]string, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// Apply overrides the config's secrets with whatever Vault holds.
func (sm *SecretManager) Apply(ctx context.Context, cfg *config.Config) error {
	secrets, err := sm.Secrets(ctx)
	if err != nil {
		return err
	}

	applied := 0
	set := func(key string, dst *string) {
		if v := secrets[key]; v != "" {
			*dst = v
			applied++
		}
	}
	set(KeyJWTSecret, &cfg.JWT.Secret)
	set(KeyModelAPIKey, &cfg.ModelService.APIKey)
	set(KeyDatabaseURL, &cfg.Database.URL)

	sm.log.Info("Loaded secrets from Vault", zap.String("path", sm.path), zap.Int("applied", applied))
	return nil
}
