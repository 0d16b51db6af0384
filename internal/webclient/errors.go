package webclient

import "errors"

// Target validation and fetch errors.
var (
	// ErrUnsupportedScheme is returned for target URLs that are not http or
	// https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https are allowed")

	// ErrEmptyHost is returned for URLs with no host component.
	ErrEmptyHost = errors.New("target URL has no host")

	// ErrPrivateHost is returned when the target resolves to a loopback,
	// link-local, or private address and private hosts are not allowed.
	ErrPrivateHost = errors.New("target host is private or loopback")

	// ErrBodyTooLarge is returned when a response body exceeds the
	// configured cap.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)
