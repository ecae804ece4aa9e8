package auth

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer = "library-desk"

	// DefaultSecret is the placeholder shipped in the config defaults.
	DefaultSecret = "change-me"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrWeakSecret   = errors.New("session secret is empty or left at the default")
)

type Config struct {
	Secret     string        `envconfig:"SESSION_SECRET" default:"change-me" json:"-"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieName string        `envconfig:"SESSION_COOKIE" default:"sessionid"`
	Secure     bool          `envconfig:"SESSION_SECURE" default:"false"`
}

// Validate rejects a secret anyone could guess and so forge sessions with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Secret) == "" || c.Secret == DefaultSecret {
		return ErrWeakSecret
	}
	return nil
}

type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

func (m *Manager) CookieName() string { return m.cfg.CookieName }
func (m *Manager) Secure() bool       { return m.cfg.Secure }

// Issue signs a session token for the user, valid for the configured TTL.
func (m *Manager) Issue(userID int64, username string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.cfg.TTL)
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session")
	}
	return token, expiresAt, nil
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(hashed), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
