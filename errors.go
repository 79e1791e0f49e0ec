package spanz

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// unknownErrorMessage tags records whose failure carried nothing readable.
const unknownErrorMessage = "unknown error"

// bestMessage returns the first non-empty message along err's cause chain,
// then fallback, then err's type name.
func bestMessage(err error, fallback string) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if msg := e.Error(); msg != "" {
			return msg
		}
	}
	if fallback != "" {
		return fallback
	}
	if err != nil {
		return fmt.Sprintf("%T", err)
	}
	return unknownErrorMessage
}

// panicError converts a recovered value into an error.
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "recovered panic")
	}
	return errors.Newf("recovered panic: %v", r)
}
