// Package gateway describes the serverless invocation wire format handled by the task router.
package gateway

import (
	"encoding/json"
	"strings"
)

// Event is an inbound HTTP-like invocation.
type Event struct {
	HTTPMethod            string            `json:"httpMethod"`
	Headers               map[string]string `json:"headers,omitempty"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Body                  string            `json:"body"`
}

// Response is the result of a single invocation.
type Response struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// Method returns the upper-cased HTTP method, defaulting to GET when absent.
func (e Event) Method() string {
	method := strings.ToUpper(strings.TrimSpace(e.HTTPMethod))
	if method == "" {
		return "GET"
	}
	return method
}

// Query returns a trimmed query parameter value.
func (e Event) Query(key string) string {
	if e.QueryStringParameters == nil {
		return ""
	}
	return strings.TrimSpace(e.QueryStringParameters[key])
}

// Header performs a case-insensitive header lookup.
func (e Event) Header(key string) string {
	for name, value := range e.Headers {
		if strings.EqualFold(name, key) {
			return value
		}
	}
	return ""
}

// DecodeBody unmarshals the JSON body into target. An empty body decodes as an empty object.
func (e Event) DecodeBody(target interface{}) error {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = "{}"
	}
	return json.Unmarshal([]byte(body), target)
}
