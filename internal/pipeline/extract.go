package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go-sales-etl/internal/model"
	"go-sales-etl/pkg/utils"
)

// Extractor supplies a raw batch for a source descriptor. Implementations
// must signal connectivity problems as source_unavailable (retryable) and
// unparseable content as malformed_source (fatal) so the resilience layer
// can classify them.
type Extractor interface {
	Extract(ctx context.Context, source model.Source) (model.RawBatch, error)
}

// SourceExtractor reads CSV files/URLs and JSON APIs.
type SourceExtractor struct {
	Client *http.Client
}

// NewSourceExtractor builds the default extractor.
func NewSourceExtractor() *SourceExtractor {
	return &SourceExtractor{Client: http.DefaultClient}
}

// Extract dispatches on the source type.
func (e *SourceExtractor) Extract(ctx context.Context, source model.Source) (model.RawBatch, error) {
	switch strings.ToLower(source.Type) {
	case "csv":
		return e.extractCSV(ctx, source.URL)
	case "json", "api":
		return e.extractJSON(ctx, source.URL)
	default:
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("unknown source type: %s", source.Type))
	}
}

func (e *SourceExtractor) extractCSV(ctx context.Context, pathOrURL string) (model.RawBatch, error) {
	var reader io.Reader
	if strings.HasPrefix(pathOrURL, "http") {
		body, err := e.fetch(ctx, pathOrURL)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		reader = body
	} else {
		file, err := os.Open(pathOrURL)
		if err != nil {
			return nil, model.NewError(model.ErrSourceUnavailable, "extract",
				fmt.Errorf("open CSV file: %w", err))
		}
		defer file.Close()
		reader = file
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	headers, err := csvReader.Read()
	if err != nil {
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("read CSV header: %w", err))
	}
	for i, h := range headers {
		headers[i] = strings.ReplaceAll(strings.TrimSpace(h), `"`, "")
	}

	var batch model.RawBatch
	for {
		if err := ctx.Err(); err != nil {
			return nil, model.NewError(model.ErrCancellationRequested, "extract", err)
		}
		row, err := csvReader.Read()
		if err == io.EOF {
			return batch, nil
		}
		if err != nil {
			return nil, model.NewError(model.ErrMalformedSource, "extract",
				fmt.Errorf("CSV row %d: %w", len(batch)+2, err))
		}
		rec := make(model.RawRecord, len(headers))
		for i, h := range headers {
			if i < len(row) {
				if v := utils.ParseValue(row[i]); v != nil {
					rec[h] = v
				}
			}
		}
		batch = append(batch, rec)
	}
}

func (e *SourceExtractor) extractJSON(ctx context.Context, url string) (model.RawBatch, error) {
	body, err := e.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, model.NewError(model.ErrSourceUnavailable, "extract",
			fmt.Errorf("read JSON body: %w", err))
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("decode JSON: %w", err))
	}

	switch data := decoded.(type) {
	case []interface{}:
		batch := make(model.RawBatch, 0, len(data))
		for i, item := range data {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, model.NewError(model.ErrMalformedSource, "extract",
					fmt.Errorf("JSON element %d is not an object", i))
			}
			batch = append(batch, model.RawRecord(m))
		}
		return batch, nil
	case map[string]interface{}:
		return model.RawBatch{model.RawRecord(data)}, nil
	default:
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("unexpected JSON structure"))
	}
}

func (e *SourceExtractor) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("build request: %w", err))
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, model.NewError(model.ErrSourceUnavailable, "extract",
			fmt.Errorf("GET %s: %w", url, err))
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, model.NewError(model.ErrSourceUnavailable, "extract",
			fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, model.NewError(model.ErrMalformedSource, "extract",
			fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
	}
	return resp.Body, nil
}
