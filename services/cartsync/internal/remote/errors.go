package remote

import (
	"errors"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/services/cartsync/internal/domain"
)

// authTags are error codes that mean the caller must log in again.
var authTags = map[string]bool{
	"authentication_required": true,
	"not_authenticated":       true,
	"unauthorized":            true,
	"unauthenticated":         true,
}

// transportError classifies an error returned by the breaker client.
func transportError(err error) error {
	var se *httpclient.ServerError
	if errors.As(err, &se) {
		return fromBody(se.StatusCode, se.Body)
	}
	return domain.NetworkFailure(err)
}

// statusError classifies a non-2xx, non-5xx response and closes its body.
func statusError(resp *http.Response) error {
	de := httpclient.ParseResponseError(resp)
	return classify(de)
}

func fromBody(status int, body []byte) error {
	return classify(httpclient.ParseErrorBody(status, body))
}

func classify(de *httpclient.DownstreamError) error {
	if de.Status == http.StatusUnauthorized || authTags[strings.ToLower(de.Code)] {
		e := domain.AuthRequired(de.Message)
		e.Status = de.Status
		e.Reason = de.Code
		return e
	}

	switch de.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		e := domain.NetworkFailure(de)
		e.Status = de.Status
		return e
	}

	return domain.Rejected(de.Status, de.Code, de.Message)
}

func kindOf(err error) domain.Kind {
	if k := domain.KindOf(err); k != "" {
		return k
	}
	return "error"
}
