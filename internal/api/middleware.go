/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccountContextKey is a custom type for the context key to avoid collisions.
type AccountContextKey string

const callerAccountKey AccountContextKey = "callerAccount"

// BearerAuthMiddleware creates a middleware that validates HS256 bearer tokens.
// The token's `sub` claim carries the caller's account address; what the caller
// may do is decided later by the badges that account holds, not by the token.
func BearerAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get the Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			// Get the account address from the 'sub' claim.
			account, ok := claims["sub"].(string)
			if !ok || strings.TrimSpace(account) == "" {
				http.Error(w, "Account address not found in token", http.StatusUnauthorized)
				return
			}

			// Add the account address to the request context
			ctx := context.WithValue(r.Context(), callerAccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerAccount retrieves the authenticated account address from the request
// context. Handlers should use this function to identify the caller.
func GetCallerAccount(ctx context.Context) (string, bool) {
	account, ok := ctx.Value(callerAccountKey).(string)
	return account, ok
}
