package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIVersion is sent as x-ms-version on every request.
const APIVersion = "2021-08-06"

// client is the HTTP plumbing shared by the three service handles.
type client struct {
	kind     ServiceKind
	settings *Settings
	http     *http.Client
	now      func() time.Time
}

type request struct {
	method string
	// path elements are escaped as single segments. When nested is set the
	// last element is a blob name whose '/' separators are kept.
	path    []string
	nested  bool
	query   url.Values
	header  http.Header
	body    []byte
	options *RequestOptions
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends r and returns the buffered response. Non-2xx statuses become *ResponseError.
func (c *client) do(ctx context.Context, r request) (*response, error) {
	escaped, err := escapePath(r.path, r.nested)
	if err != nil {
		return nil, err
	}
	target := strings.TrimRight(c.settings.Endpoint(c.kind), "/")
	if escaped != "" {
		target += "/" + escaped
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s url: %w", c.kind, err)
	}

	query := r.query
	if query == nil {
		query = url.Values{}
	}
	opts := r.options
	if opts == nil {
		opts = &RequestOptions{}
	}
	if opts.TimeoutIntervalInMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutIntervalInMs)*time.Millisecond)
		defer cancel()
		// The service takes whole seconds; round up so it never expires first.
		query.Set("timeout", strconv.Itoa((opts.TimeoutIntervalInMs+999)/1000))
	}
	u.RawQuery = query.Encode()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	requestID := opts.ClientRequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("x-ms-client-request-id", requestID)
	req.Header.Set("x-ms-version", APIVersion)
	if err := c.sign(req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, requestID, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

// escapePath escapes each element with url.PathEscape so a name can never
// address another resource. Empty, "." and ".." segments are rejected.
func escapePath(elems []string, nested bool) (string, error) {
	parts := make([]string, 0, len(elems))
	for i, elem := range elems {
		segments := []string{elem}
		if nested && i == len(elems)-1 {
			segments = strings.Split(elem, "/")
		}
		for _, seg := range segments {
			if seg == "" || seg == "." || seg == ".." {
				return "", &PathError{Name: elem}
			}
			parts = append(parts, url.PathEscape(seg))
		}
	}
	return strings.Join(parts, "/"), nil
}

// doJSON sends r and decodes a JSON body into out.
func (c *client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.kind, err)
	}
	return nil
}

// sign adds x-ms-date and a Shared Key Authorization header. Requests without an
// account key are sent anonymously.
func (c *client) sign(req *http.Request) error {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	date := now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", date)

	if c.settings.AccountKey == "" {
		return nil
	}
	signature, err := Signature(c.settings.AccountName, c.settings.AccountKey, req.Method, date, req.URL.EscapedPath())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("SharedKey %s:%s", c.settings.AccountName, signature))
	return nil
}

// Signature computes the base64 HMAC-SHA256 of "VERB\nDATE\n/account/path" keyed
// with the decoded account key.
func Signature(account, key, method, date, path string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", connStringErr("AccountKey is not valid base64")
	}
	stringToSign := method + "\n" + date + "\n/" + account + path

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func decodeError(status int, requestID string, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	rerr := &ResponseError{StatusCode: status, RequestID: requestID}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Code != "" {
		rerr.Code = payload.Error.Code
		rerr.Message = payload.Error.Message
		return rerr
	}
	rerr.Code = http.StatusText(status)
	rerr.Message = string(bytes.TrimSpace(body))
	return rerr
}

// IsNotFound reports whether err is a 404 from the storage service.
func IsNotFound(err error) bool {
	var rerr *ResponseError
	return errors.As(err, &rerr) && rerr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the storage service.
func IsConflict(err error) bool {
	var rerr *ResponseError
	return errors.As(err, &rerr) && rerr.StatusCode == http.StatusConflict
}
