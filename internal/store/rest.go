package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/prep-assistant/internal/experience"
)

const (
	restPath         = "/rest/v1/"
	defaultUserAgent = "spigell/prep-assistant"
	defaultTimeout   = 10 * time.Second
)

// RESTStore reads experiences through the BaaS REST endpoint.
type RESTStore struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	BaseURL    string
	Table      string
}

type Row map[string]any

// NewREST creates a REST store for the project at baseURL authenticated with apiKey.
func NewREST(baseURL, apiKey string, logger *zap.Logger) (*RESTStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("store url is required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("store api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RESTStore{
		apiKey:  apiKey,
		logger:  logger,
		BaseURL: baseURL,
		Table:   experience.TableName,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		UserAgent: defaultUserAgent,
	}, nil
}

func (s *RESTStore) Find(ctx context.Context, q Query) ([]experience.Experience, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	endpoint := s.BaseURL + restPath + s.Table
	rows, err := s.getRows(ctx, endpoint, encodeQuery(q))
	if err != nil {
		return nil, err
	}

	return decodeRows(rows)
}

func decodeRows(rows []Row) ([]experience.Experience, error) {
	var records []experience.Experience

	cfg := &mapstructure.DecoderConfig{
		Result:  &records,
		TagName: "json",
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create row decoder: %w", err)
	}

	if err := decoder.Decode(rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	return records, nil
}
