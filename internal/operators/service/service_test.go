package service

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestSignAccessToken(t *testing.T) {
	operatorID := uuid.New()
	issued := time.Now().Truncate(time.Second)

	signed, err := signAccessToken(operatorID, 12*time.Hour, "test-secret", issued)
	if err != nil {
		t.Fatalf("signAccessToken() error = %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("unexpected signing method %v", token.Method)
		}
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("minted token does not parse: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims have type %T", parsed.Claims)
	}
	if sub, _ := claims["sub"].(string); sub != operatorID.String() {
		t.Errorf("sub = %q, want %q", sub, operatorID)
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		t.Errorf("type = %q, want access", typ)
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != issued.Add(12*time.Hour).Unix() {
		t.Errorf("exp = %v, want %d", exp, issued.Add(12*time.Hour).Unix())
	}
	if iat, _ := claims["iat"].(float64); int64(iat) != issued.Unix() {
		t.Errorf("iat = %v, want %d", iat, issued.Unix())
	}
}

func TestSignAccessTokenWrongSecretRejected(t *testing.T) {
	signed, err := signAccessToken(uuid.New(), time.Hour, "right-secret", time.Now())
	if err != nil {
		t.Fatalf("signAccessToken() error = %v", err)
	}

	_, err = jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	if err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestNewAPIKey(t *testing.T) {
	first, err := newAPIKey()
	if err != nil {
		t.Fatalf("newAPIKey() error = %v", err)
	}
	second, err := newAPIKey()
	if err != nil {
		t.Fatalf("newAPIKey() error = %v", err)
	}

	if first == second {
		t.Error("two generated keys are identical")
	}
	raw, err := base64.RawURLEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("key is not base64url: %v", err)
	}
	if len(raw) != apiKeyBytes {
		t.Errorf("key entropy = %d bytes, want %d", len(raw), apiKeyBytes)
	}
}
