package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

// ErrTokenExpired токен верифицирован, но срок его действия истек к моменту проверки
var ErrTokenExpired = errors.New("срок действия токена истек")

// KeycloakConfig параметры realm и клиента административного API
type KeycloakConfig struct {
	ServerURL string
	Realm     string
	ClientID  string
}

type roleList struct {
	Roles []string `json:"roles"`
}

// KeycloakClaims поля access-токена, нужные для авторизации
type KeycloakClaims struct {
	UserID         string              `json:"sub"`
	Username       string              `json:"preferred_username"`
	Email          string              `json:"email"`
	RealmAccess    roleList            `json:"realm_access"`
	ResourceAccess map[string]roleList `json:"resource_access"`
}

// hasRole ищет роль среди ролей realm и ролей клиента clientID
func (c *KeycloakClaims) hasRole(clientID, role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	for _, r := range c.ResourceAccess[clientID].Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenValidator проверяет bearer-токены административного API
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*KeycloakClaims, error)
	HasAnyRole(claims *KeycloakClaims, roles ...string) bool
}

// KeycloakClient проверяет токены по ключам realm и кэширует разобранные claims до истечения токена
type KeycloakClient struct {
	verifier *oidc.IDTokenVerifier
	endpoint oauth2.Endpoint
	verified *cache.Cache
	clientID string
}

// NewKeycloakClient загружает discovery-документ realm. Токены сервисных аккаунтов
// выдаются другим клиентам, поэтому audience не сверяется с ClientID.
func NewKeycloakClient(ctx context.Context, cfg KeycloakConfig) (*KeycloakClient, error) {
	issuer := strings.TrimRight(cfg.ServerURL, "/") + "/realms/" + cfg.Realm

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения конфигурации realm %s: %w", cfg.Realm, err)
	}

	return &KeycloakClient{
		verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		endpoint: provider.Endpoint(),
		verified: cache.New(5*time.Minute, 10*time.Minute),
		clientID: cfg.ClientID,
	}, nil
}

// TokenEndpoint адрес выдачи токенов realm
func (k *KeycloakClient) TokenEndpoint() string {
	return k.endpoint.TokenURL
}

func (k *KeycloakClient) ValidateToken(ctx context.Context, raw string) (*KeycloakClaims, error) {
	if v, ok := k.verified.Get(raw); ok {
		return v.(*KeycloakClaims), nil
	}

	token, err := k.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("токен не прошел проверку: %w", err)
	}

	ttl := time.Until(token.Expiry)
	if ttl <= 0 {
		return nil, ErrTokenExpired
	}

	claims := &KeycloakClaims{}
	if err := token.Claims(claims); err != nil {
		return nil, fmt.Errorf("ошибка разбора claims: %w", err)
	}

	k.verified.Set(raw, claims, ttl)
	return claims, nil
}

// HasRole учитывает роли realm и роли клиента административного API
func (k *KeycloakClient) HasRole(claims *KeycloakClaims, role string) bool {
	return claims != nil && claims.hasRole(k.clientID, role)
}

func (k *KeycloakClient) HasAnyRole(claims *KeycloakClaims, roles ...string) bool {
	for _, role := range roles {
		if k.HasRole(claims, role) {
			return true
		}
	}
	return false
}
