package notify

import "errors"

var (
	ErrUnreachable     = errors.New("channel unreachable")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrInvalidResponse = errors.New("invalid response")
	ErrUnknownChannel  = errors.New("unknown alert method")
)

// permanentError marks a delivery failure that retrying cannot fix
// (bad credentials, missing configuration, rejected payload).
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return permanent(err) }

func IsPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}
