package config

import "github.com/athebyme/gomarket-platform/pkg/auth"

// KeycloakConfig проверка токенов административного API.
// При Enabled=false API доступно без аутентификации.
type KeycloakConfig struct {
	Enabled       bool
	ServerURL     string
	Realm         string
	ClientID      string
	RequiredRoles []string // достаточно одной из ролей
}

// ClientConfig параметры для auth.NewKeycloakClient
func (k KeycloakConfig) ClientConfig() auth.KeycloakConfig {
	return auth.KeycloakConfig{
		ServerURL: k.ServerURL,
		Realm:     k.Realm,
		ClientID:  k.ClientID,
	}
}
