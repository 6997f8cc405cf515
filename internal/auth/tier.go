package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

// linkClaims is the subset of the account-linking token we care about.
type linkClaims struct {
	Plan string `json:"plan"`
	jwt.RegisteredClaims
}

// TierClassifier maps the platform's account-linking access token to a user
// tier. No token means an unauthenticated user; a token whose plan claim
// names a paid plan means a subscriber; anything else parseable is a free
// account. An unparseable token is treated as unauthenticated, not as an
// error: account linking is optional and the dialog must still work.
type TierClassifier struct {
	log    *logger.Logger
	secret []byte
}

func NewTierClassifier(baseLog *logger.Logger, jwtSecret string) *TierClassifier {
	return &TierClassifier{
		log:    baseLog.With("service", "TierClassifier"),
		secret: []byte(jwtSecret),
	}
}

func (c *TierClassifier) Classify(accessToken string) types.UserType {
	if accessToken == "" {
		return types.UserTypeNoAuth
	}
	claims := &linkClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		c.log.Debug("Access token rejected, treating as unauthenticated", "error", err)
		return types.UserTypeNoAuth
	}
	switch claims.Plan {
	case "subscriber", "premium", "annual":
		return types.UserTypeSubscribed
	default:
		return types.UserTypeAuthFree
	}
}
