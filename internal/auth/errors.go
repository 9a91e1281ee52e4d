package auth

import "errors"

// Token verification failures. ErrTokenExpired means the token was well
// formed and correctly signed but past its expiry; everything else about a
// bad token is ErrTokenMalformed.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)
