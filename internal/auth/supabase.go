package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/khanghh/supagate/internal/users"
	"github.com/khanghh/supagate/params"
)

type AppMetadata struct {
	Provider  string   `json:"provider,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

type UserMetadata struct {
	Name              string `json:"name,omitempty"`
	FullName          string `json:"full_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// SupabaseClaims are the claims carried by a Supabase access token.
type SupabaseClaims struct {
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Role         string       `json:"role,omitempty"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func buildProfile(supabaseID, email string, app AppMetadata, meta UserMetadata) users.SupabaseProfile {
	provider := firstNonEmpty(app.Provider, "email")
	providers := app.Providers
	if len(providers) == 0 {
		providers = []string{provider}
	}
	return users.SupabaseProfile{
		SupabaseID: supabaseID,
		Email:      email,
		Name:       firstNonEmpty(meta.Name, meta.FullName, meta.PreferredUsername),
		AvatarURL:  firstNonEmpty(meta.AvatarURL, meta.Picture),
		Provider:   provider,
		Providers:  providers,
	}
}

func (c *SupabaseClaims) Profile() users.SupabaseProfile {
	return buildProfile(c.Subject, c.Email, c.AppMetadata, c.UserMetadata)
}

type SupabaseConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// SupabaseVerifier validates HS256 access tokens signed with the project JWT secret.
type SupabaseVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

func (v *SupabaseVerifier) Verify(tokenStr string) (*SupabaseClaims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return nil, ErrMisconfigured
	}

	var claims SupabaseClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if err := uuid.Validate(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}
	return &claims, nil
}

func NewSupabaseVerifier(config SupabaseConfig, now func() time.Time) *SupabaseVerifier {
	audience := config.Audience
	if audience == "" {
		audience = params.SupabaseDefaultAudience
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(params.SupabaseTokenLeeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	return &SupabaseVerifier{
		secret: []byte(config.JWTSecret),
		opts:   opts,
	}
}
