package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/types"
)

const testSecret = "unit-test-secret"

func signedToken(t *testing.T, secret, plan string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"plan": plan})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestClassify(t *testing.T) {
	c := NewTierClassifier(logger.NewNop(), testSecret)

	cases := []struct {
		name  string
		token string
		want  types.UserType
	}{
		{name: "no_token", token: "", want: types.UserTypeNoAuth},
		{name: "garbage_token", token: "not-a-jwt", want: types.UserTypeNoAuth},
		{name: "wrong_secret", token: signedToken(t, "other-secret", "subscriber"), want: types.UserTypeNoAuth},
		{name: "subscriber_plan", token: signedToken(t, testSecret, "subscriber"), want: types.UserTypeSubscribed},
		{name: "premium_plan", token: signedToken(t, testSecret, "premium"), want: types.UserTypeSubscribed},
		{name: "annual_plan", token: signedToken(t, testSecret, "annual"), want: types.UserTypeSubscribed},
		{name: "free_plan", token: signedToken(t, testSecret, "free"), want: types.UserTypeAuthFree},
		{name: "empty_plan", token: signedToken(t, testSecret, ""), want: types.UserTypeAuthFree},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.token); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyRejectsUnsignedToken(t *testing.T) {
	c := NewTierClassifier(logger.NewNop(), testSecret)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"plan": "subscriber"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if got := c.Classify(s); got != types.UserTypeNoAuth {
		t.Fatalf("Classify = %q, want NO_AUTH for alg=none", got)
	}
}
