package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of both API and documentation tokens.
const TokenTTL = 24 * time.Hour

// DocsSubject and DocsPurpose are the fixed claims carried by documentation
// tokens. Docs tokens are not tied to a user account.
const (
	DocsSubject = "swagger-docs"
	DocsPurpose = "docs"
)

// APIClaims is the decoded payload of a verified API token. The role list
// is informational; authorization always reloads effective roles from the
// store.
type APIClaims struct {
	UserID   uint64
	Email    string
	Name     string
	Roles    []string
	IssuedAt time.Time
}

// TokenService signs and verifies two independent JWT namespaces: API
// tokens for clients and documentation tokens for the docs UI. Each
// namespace has its own HS256 secret.
type TokenService struct {
	apiSecret  string
	docsSecret string
}

// NewTokenService builds a TokenService. An empty docsSecret makes the
// documentation namespace fall back to the API secret; callers should use
// DocsFallback to surface that loudly at startup since it weakens the
// isolation between the two namespaces.
func NewTokenService(apiSecret, docsSecret string) *TokenService {
	return &TokenService{apiSecret: apiSecret, docsSecret: docsSecret}
}

// DocsFallback reports whether documentation tokens are being signed with
// the API secret because no dedicated docs secret was configured.
func (s *TokenService) DocsFallback() bool {
	return s.docsSecret == "" && s.apiSecret != ""
}

func (s *TokenService) docsKey() string {
	if s.docsSecret != "" {
		return s.docsSecret
	}
	return s.apiSecret
}

// IssueAPIToken signs a 24h HS256 token for the given principal embedding
// id, email, name and the effective role names at issue time.
func (s *TokenService) IssueAPIToken(userID uint64, email, name string, roles []string) (string, time.Time, error) {
	if s.apiSecret == "" {
		return "", time.Time{}, ErrSecretMissing
	}
	now := time.Now().UTC()
	exp := now.Add(TokenTTL)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"name":  name,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.apiSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueDocsToken signs a 24h token for the documentation UI using the docs
// secret (or the API secret when the fallback is in effect).
func (s *TokenService) IssueDocsToken() (string, time.Time, error) {
	key := s.docsKey()
	if key == "" {
		return "", time.Time{}, ErrSecretMissing
	}
	now := time.Now().UTC()
	exp := now.Add(TokenTTL)
	claims := jwt.MapClaims{
		"sub":     DocsSubject,
		"purpose": DocsPurpose,
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAPIToken validates signature and expiry against the API secret and
// decodes the claims. Expired tokens return ErrTokenExpired; every other
// parse failure returns ErrTokenInvalid.
func (s *TokenService) VerifyAPIToken(raw string) (*APIClaims, error) {
	if s.apiSecret == "" {
		return nil, ErrSecretMissing
	}
	claims, err := parseHS256(raw, s.apiSecret)
	if err != nil {
		return nil, err
	}
	out := &APIClaims{}
	switch v := claims["sub"].(type) {
	case float64:
		out.UserID = uint64(v)
	case int64:
		out.UserID = uint64(v)
	default:
		return nil, ErrTokenInvalid
	}
	if out.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range raw {
			if name, ok := r.(string); ok {
				out.Roles = append(out.Roles, name)
			}
		}
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	return out, nil
}

// VerifyDocsToken validates a documentation token: signature, expiry and
// the fixed purpose marker. It does not consult account state.
func (s *TokenService) VerifyDocsToken(raw string) error {
	key := s.docsKey()
	if key == "" {
		return ErrSecretMissing
	}
	claims, err := parseHS256(raw, key)
	if err != nil {
		return err
	}
	if purpose, _ := claims["purpose"].(string); purpose != DocsPurpose {
		return ErrTokenInvalid
	}
	return nil
}

// parseHS256 parses a token enforcing the HMAC signing method and maps the
// library's error kinds onto the package sentinels.
func parseHS256(raw, secret string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
