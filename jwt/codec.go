package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the single algorithm a Codec signs and accepts.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519 keys.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACSecretBytes = 32

var (
	// ErrInvalidToken is returned for every verification failure. Callers never learn
	// which check rejected the token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidConfig is returned by NewCodec for unusable key or claim settings.
	ErrInvalidConfig = errors.New("invalid token codec configuration")
)

// Config defines signing keys and the registered-claim expectations enforced on verify.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Claims is the verified content of a bearer token.
type Claims struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	SID  string `json:"sid"`
	jwt.RegisteredClaims
}

// Codec signs and verifies bearer tokens. It performs no I/O.
type Codec struct {
	config Config
	method jwt.SigningMethod
	sign   interface{}
	verify interface{}
}

// NewCodec validates cfg and resolves its key material once.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("%w: issuer and audience are required", ErrInvalidConfig)
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecretBytes {
			return nil, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrInvalidConfig, minHMACSecretBytes)
		}
		c.method = jwt.SigningMethodHS256
		c.sign = cfg.PrivateKey
		c.verify = cfg.PrivateKey
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.sign = priv
			if len(cfg.PublicKey) == 0 {
				c.verify = priv.Public().(ed25519.PublicKey)
			}
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verify = pub
		}
		if c.verify == nil && len(cfg.VerifyKeys) == 0 {
			return nil, fmt.Errorf("%w: ed25519 requires a public key or verify key set", ErrInvalidConfig)
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, fmt.Errorf("%w: verify key map contains empty kid", ErrInvalidConfig)
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, cfg.SigningMethod)
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, fmt.Errorf("%w: KeyID is not present in VerifyKeys", ErrInvalidConfig)
		}
	}

	return c, nil
}

// Algorithm reports the JWS "alg" value this codec signs with and accepts.
func (c *Codec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs a token for userID and role bound to sessionID.
func (c *Codec) Issue(userID, role, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	if c.sign == nil {
		return "", fmt.Errorf("%w: codec has no signing key", ErrInvalidConfig)
	}
	if userID == "" || sessionID == "" {
		return "", errors.New("token subject and session id are required")
	}
	if !expiresAt.After(issuedAt) {
		return "", errors.New("token expiry must be after issue time")
	}

	claims := Claims{
		UID:  userID,
		Role: role,
		SID:  sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.config.Issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{c.config.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}
	return token.SignedString(c.sign)
}

// Verify checks signature, expiry, issuer and audience. Any failure yields ErrInvalidToken.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	claims, err := c.parse(tokenStr)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, c.keyFunc)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UID == "" || claims.SID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	// WithValidMethods already filters; this guards against alg/key-type confusion.
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(c.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		if c.config.SigningMethod == MethodHS256 {
			return key, nil
		}
		return parseEdPublicKey(key)
	}
	if c.config.KeyID != "" && kid != c.config.KeyID {
		return nil, errors.New("unknown kid")
	}
	return c.verify, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 private key type", ErrInvalidConfig)
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidConfig)
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: invalid ed25519 public key type", ErrInvalidConfig)
	}
	return edKey, nil
}
