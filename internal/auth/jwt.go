package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/types"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const issuer = "deepref"

var tokenAuth *jwtauth.JWTAuth

// Initialize must be called once after env.Initialize.
func Initialize() {
	tokenAuth = jwtauth.New("HS256", env.JWTSecret(), nil)
}

func JWTAuth() *jwtauth.JWTAuth {
	if tokenAuth == nil {
		panic("auth not initialized")
	}
	return tokenAuth
}

// Verifier parses the bearer token into the request context. Pair with
// Authenticator, which turns the parsed token into the request principal.
func Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(JWTAuth())
}

// GenerateAccessToken mints the short-lived signed token carrying the
// identity, the owning session id and the mfa flags.
func GenerateAccessToken(
	userAccount types.UserAccount, sessionID uuid.UUID, mfaVerified bool,
) (string, error) {
	claims := map[string]any{
		"iss":            issuer,
		"sub":            userAccount.ID.String(),
		"sid":            sessionID.String(),
		"email":          userAccount.Email,
		"role":           string(userAccount.Role),
		"email_verified": userAccount.EmailVerified,
		"mfa_enabled":    userAccount.MFAEnabled,
		"mfa_verified":   mfaVerified,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, env.AccessTokenValidDuration())
	_, tokenString, err := JWTAuth().Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode access token: %w", err)
	}
	return tokenString, nil
}

// GenerateVerifyEmailToken mints a single-purpose token for the email
// verification link. It carries a purpose claim so it can never be used as
// an access token.
func GenerateVerifyEmailToken(userAccount types.UserAccount) (string, error) {
	claims := map[string]any{
		"iss":     issuer,
		"sub":     userAccount.ID.String(),
		"purpose": "verify_email",
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, 24*time.Hour)
	_, tokenString, err := JWTAuth().Encode(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode verification token: %w", err)
	}
	return tokenString, nil
}

func VerifyEmailToken(tokenString string) (uuid.UUID, error) {
	token, err := jwtauth.VerifyToken(JWTAuth(), tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	if purpose, _ := token.Get("purpose"); purpose != "verify_email" {
		return uuid.Nil, jwtauth.ErrUnauthorized
	}
	return uuid.Parse(token.Subject())
}

// Authenticator builds the request principal from the token parsed by
// jwtauth.Verifier, rejecting requests with a missing or invalid token.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		authn, err := authnFromClaims(claims)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithAuthn(r.Context(), authn)))
	})
}

func authnFromClaims(claims map[string]any) (*Authn, error) {
	if _, ok := claims["purpose"]; ok {
		// single-purpose tokens never authenticate requests
		return nil, jwt.ErrInvalidJWT()
	}
	accountID, err := parseUUIDClaim(claims, "sub")
	if err != nil {
		return nil, err
	}
	sessionID, err := parseUUIDClaim(claims, "sid")
	if err != nil {
		return nil, err
	}
	role, err := types.ParseUserRole(stringClaim(claims, "role"))
	if err != nil {
		return nil, err
	}
	return &Authn{
		AccountID:     accountID,
		SessionID:     sessionID,
		Email:         stringClaim(claims, "email"),
		Role:          role,
		EmailVerified: boolClaim(claims, "email_verified"),
		MFAEnabled:    boolClaim(claims, "mfa_enabled"),
		MFAVerified:   boolClaim(claims, "mfa_verified"),
	}, nil
}

func parseUUIDClaim(claims map[string]any, key string) (uuid.UUID, error) {
	value, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing %v claim", key)
	}
	return uuid.Parse(value)
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return value
}

func boolClaim(claims map[string]any, key string) bool {
	value, _ := claims[key].(bool)
	return value
}
