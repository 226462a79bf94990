package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/render"
)

type claimsKey struct{}

var (
	errNoToken       = errors.New("требуется заголовок Authorization: Bearer <token>")
	errInvalidToken  = errors.New("токен недействителен")
	errRoleRequired  = errors.New("недостаточно прав")
	errNoClaimsInCtx = errors.New("запрос не прошел аутентификацию")
)

// ClaimsFromContext возвращает claims, положенные AuthMiddleware
func ClaimsFromContext(ctx context.Context) (*KeycloakClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*KeycloakClaims)
	return claims, ok
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func deny(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="catalog-sync"`)
	}
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": code, "message": err.Error()})
}

// AuthMiddleware проверяет bearer-токен и кладет claims в контекст запроса
func AuthMiddleware(v TokenValidator, logger interfaces.LoggerPort) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				deny(w, r, http.StatusUnauthorized, errNoToken)
				return
			}

			claims, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				logger.WarnWithContext(r.Context(), "Недействительный токен",
					interfaces.LogField{Key: "error", Value: err.Error()})
				deny(w, r, http.StatusUnauthorized, errInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// RequireAnyRole пропускает запрос, если у пользователя есть хотя бы одна из ролей
func RequireAnyRole(v TokenValidator, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			switch {
			case !ok:
				deny(w, r, http.StatusUnauthorized, errNoClaimsInCtx)
			case !v.HasAnyRole(claims, roles...):
				deny(w, r, http.StatusForbidden, errRoleRequired)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
