package emby

import "errors"

// Sentinel errors for catalog operations
var (
	// ErrServerUnreachable indicates the Emby server could not be
	// reached or did not answer with a usable response.
	ErrServerUnreachable = errors.New("emby server cannot be reached")

	// ErrBadResponse indicates the server answered but the payload
	// could not be decoded.
	ErrBadResponse = errors.New("unexpected response from emby server")
)
