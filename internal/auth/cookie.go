package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CookieName carries a membership token. One cookie per browser, bound to
// the room it was issued for.
const CookieName = "x-auth-token"

// SecretKey signs membership cookies. It is replaced from configuration at
// startup; the default only serves tests.
var SecretKey = []byte("hush-test-cookie-key")

// ErrBadCookie covers every way a cookie value can fail verification.
var ErrBadCookie = errors.New("bad cookie")

func mac(value []byte) []byte {
	h := hmac.New(sha256.New, SecretKey)
	h.Write(value)
	return h.Sum(nil)
}

// SignCookie encodes value as "value|signature", both base64url.
func SignCookie(value string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(value)) + "|" + enc.EncodeToString(mac([]byte(value)))
}

// VerifyCookie returns the value inside a SignCookie result.
func VerifyCookie(signed string) (string, error) {
	encValue, encSig, ok := strings.Cut(signed, "|")
	if !ok {
		return "", fmt.Errorf("%w: format", ErrBadCookie)
	}
	enc := base64.RawURLEncoding
	value, err := enc.DecodeString(encValue)
	if err != nil {
		return "", fmt.Errorf("%w: value encoding", ErrBadCookie)
	}
	sig, err := enc.DecodeString(encSig)
	if err != nil {
		return "", fmt.Errorf("%w: signature encoding", ErrBadCookie)
	}
	if !hmac.Equal(sig, mac(value)) {
		return "", fmt.Errorf("%w: signature", ErrBadCookie)
	}
	return string(value), nil
}

// MembershipCookie issues the cookie for token in roomID.
func MembershipCookie(roomID, token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    SignCookie(roomID + "|" + token),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// MembershipToken returns the token the request carries for roomID, or "" if
// it carries none, a forged one, or one issued for another room.
func MembershipToken(r *http.Request, roomID string) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	value, err := VerifyCookie(cookie.Value)
	if err != nil {
		return ""
	}
	room, token, ok := strings.Cut(value, "|")
	if !ok || room != roomID || token == "" {
		return ""
	}
	return token
}
