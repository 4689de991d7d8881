package store

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	// reserved characters of the REST filter grammar that force quoting inside or=(...)
	reservedChars = ",.:()\""
)

// APIError is the error payload returned by the BaaS REST endpoint.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("store api error: status %d", e.Status)
	if e.Code != "" {
		msg += " code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// getRows makes a GET request to the REST endpoint and decodes the returned rows.
func (s *RESTStore) getRows(ctx context.Context, endpoint string, q url.Values) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req = s.setHeaders(req)
	req.URL.RawQuery = q.Encode()

	resp, err := s.request(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(data) > 0 {
			// the body is advisory; a non-JSON body still yields the status
			_ = json.Unmarshal(data, apiErr)
		}
		return nil, apiErr
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}

	s.logger.Debug("got rows from store", zap.Int("count", len(rows)))

	return rows, nil
}

func (s *RESTStore) request(req *http.Request) (*http.Response, error) {
	s.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *RESTStore) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

// encodeQuery renders a query in the REST filter grammar.
func encodeQuery(q Query) url.Values {
	v := url.Values{}
	v.Set("select", "*")

	switch len(q.Any) {
	case 0:
	case 1:
		c := q.Any[0]
		v.Set(string(c.Field), string(c.Op)+"."+filterValue(c, false))
	default:
		parts := make([]string, 0, len(q.Any))
		for _, c := range q.Any {
			parts = append(parts, string(c.Field)+"."+string(c.Op)+"."+filterValue(c, true))
		}
		v.Set("or", "("+strings.Join(parts, ",")+")")
	}

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, string(o.Field)+"."+dir)
		}
		v.Set("order", strings.Join(parts, ","))
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	return v
}

func filterValue(c Clause, nested bool) string {
	value := c.Value
	if c.Op == OpILike {
		value = "*" + strings.ReplaceAll(value, "*", "") + "*"
	}
	if nested && strings.ContainsAny(value, reservedChars) {
		value = `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
	}
	return value
}
