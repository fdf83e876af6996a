// Package middleware provides HTTP middleware for the widget service.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// InstanceIDKey is the context key for the widget instance id.
	InstanceIDKey ContextKey = "instance_id"
	// NamespaceKey is the context key for the visitor namespace.
	NamespaceKey ContextKey = "namespace"
	// ClientIDKey is the context key for the widget client id.
	ClientIDKey ContextKey = "client_id"
)

const tokenIssuer = "companin-widget"

// Claims are the claims of an instance token. The subject is the visitor
// namespace of the browser the instance was created for.
type Claims struct {
	jwt.RegisteredClaims
	InstanceID  string `json:"instance_id"`
	ClientID    string `json:"client_id"`
	AssistantID string `json:"assistant_id"`
}

// InstanceToken describes the instance a token grants access to.
type InstanceToken struct {
	Namespace   string
	InstanceID  string
	ClientID    string
	AssistantID string
}

// IssueInstanceToken signs an HS256 token for one widget instance.
func IssueInstanceToken(secret string, ttl time.Duration, it InstanceToken) (string, error) {
	if secret == "" {
		return "", errors.New("instance token secret is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   it.Namespace,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		InstanceID:  it.InstanceID,
		ClientID:    it.ClientID,
		AssistantID: it.AssistantID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseInstanceToken validates a token and returns its claims.
func ParseInstanceToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.InstanceID == "" || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Auth creates instance token authentication middleware.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				// EventSource cannot set headers.
				if token := r.URL.Query().Get("token"); token != "" && r.Method == http.MethodGet {
					authHeader = "Bearer " + token
				}
			}
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := ParseInstanceToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), InstanceIDKey, claims.InstanceID)
			ctx = context.WithValue(ctx, NamespaceKey, claims.Subject)
			ctx = context.WithValue(ctx, ClientIDKey, claims.ClientID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetInstanceID gets the instance id from context.
func GetInstanceID(ctx context.Context) string {
	if v := ctx.Value(InstanceIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetNamespace gets the visitor namespace from context.
func GetNamespace(ctx context.Context) string {
	if v := ctx.Value(NamespaceKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetClientID gets the widget client id from context.
func GetClientID(ctx context.Context) string {
	if v := ctx.Value(ClientIDKey); v != nil {
		return v.(string)
	}
	return ""
}
