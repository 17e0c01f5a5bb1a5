package extraction

import (
	"context"
	"fmt"
	"io"
	"strings"

	apphttp "property-receptionist/internal/common/http"
	"property-receptionist/internal/models"
)

// Request is the body of the streaming extraction call.
type Request struct {
	Query        string `json:"query"`
	Country      string `json:"country,omitempty"`
	PropertyType string `json:"property_type"`
	SemiResults  bool   `json:"semi_results"`
}

// NewRequest derives the extraction request for a place.
func NewRequest(place models.SelectedPlace, propertyType string, semiResults bool) Request {
	return Request{
		Query:        place.SearchQuery(),
		Country:      place.Country,
		PropertyType: propertyType,
		SemiResults:  semiResults,
	}
}

// Transport opens the streaming response. Closing the returned body, or cancelling
// ctx, must abort the underlying connection.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPTransport posts the request to the extraction endpoint and hands back the
// chunked response body.
type HTTPTransport struct {
	client *apphttp.Client
	url    string
}

func NewHTTPTransport(client *apphttp.Client, url string) *HTTPTransport {
	return &HTTPTransport{client: client, url: url}
}

func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	resp, err := t.client.PostJSON(ctx, t.url, req, "application/x-ndjson")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extraction endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}
