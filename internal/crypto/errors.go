package crypto

import "errors"

var (
	ErrInvalidKeyMaterial   = errors.New("crypto: invalid key material")
	ErrAuthenticationFailed = errors.New("crypto: message authentication failed")
)
