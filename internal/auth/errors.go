package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for any failed login, whether or not the
	// identifier exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingToken indicates the request carried no bearer token.
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken indicates a malformed token or a failed signature or issuer check.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the token was valid but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrForbidden indicates an authenticated principal acting on someone else's resource.
	ErrForbidden = errors.New("forbidden")
)

// IsUnauthorized reports whether err should be surfaced as an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired)
}
