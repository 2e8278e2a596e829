package amazon

import (
	"errors"
	"fmt"
)

// ErrNoIdentifier marks a scraped page whose URL carried no usable ASIN.
// The candidate record is discarded, never persisted.
var ErrNoIdentifier = errors.New("no ASIN in product URL")

// FetchError is a navigation timeout or browser failure. The fetcher never
// retries internally; callers decide whether to retry or abandon the URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
