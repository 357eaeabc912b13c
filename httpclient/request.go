package httpclient

// Request describes an outbound HTTP request.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL if BaseURL is empty.
	Path string
	// Headers are request-specific headers (merged with client defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body is the request body. Accepts io.Reader, []byte, string, or any value
	// that will be JSON-encoded.
	Body any
}

// Response is the result of an HTTP request. It round-trips through JSON so
// it can be cached.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int `json:"status_code"`
	// Headers are the response headers.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the raw response body.
	Body []byte `json:"body"`
	// URL is the final request URL after redirects.
	URL string `json:"url"`
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}
