package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-school-admin/internal/errors"
)

// MaxRetries is how many times a request is replayed after a refresh.
const MaxRetries = 1

// Request is one logical API call. It is a value: a replay is a copy with the attempt
// incremented, so nothing in flight is ever mutated.
type Request struct {
	Method string
	Path   string
	ID     string // X-Request-ID, shared by the original dispatch and its replay

	body      []byte
	header    http.Header
	anonymous bool
	attempt   int
}

// NewRequest encodes payload as JSON. A nil payload sends no body.
func NewRequest(method, path string, payload any, opts ...CallOption) (Request, error) {
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r := Request{
		Method: strings.ToUpper(method),
		Path:   path,
		ID:     uuid.NewString(),
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Request{}, fmt.Errorf("[Gateway NewRequest] encode payload for %s %s: %w", method, path, err)
		}
		r.body = b
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r, nil
}

// Attempt is 0 for the first dispatch and 1 for the replay after a refresh.
func (r Request) Attempt() int {
	return r.attempt
}

func (r Request) Anonymous() bool {
	return r.anonymous
}

func (r Request) canRetry() bool {
	return !r.anonymous && r.attempt < MaxRetries
}

func (r Request) retry() Request {
	next := r
	next.attempt++
	return next
}

// Response is a non-failure API response. Body is returned unchanged.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("[Response Decode] empty body: %w", errors.ErrMalformedResponse)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(errors.ErrMalformedResponse, "[Response Decode] %s", err.Error())
	}
	return nil
}
