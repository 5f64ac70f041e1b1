package banks

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient builds the client used for balance, transfer and transaction
// calls. These are single-attempt: a retried transfer could move money twice,
// and a failed balance read is simply reported for that bank and retried on
// the next scheduled run.
func NewHTTPClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return rc.StandardClient()
}

// NewHealthHTTPClient builds the client used for health checks: up to 3
// attempts with exponential backoff starting at 2 seconds.
func NewHealthHTTPClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return rc.StandardClient()
}
