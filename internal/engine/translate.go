package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TranslateFunc converts text from src language into English. Tests
// inject fakes; production uses GoogleTranslate.
type TranslateFunc func(ctx context.Context, text, src string) (string, error)

const gtxEndpoint = "https://translate.googleapis.com/translate_a/single"

// NewGoogleTranslator returns a TranslateFunc backed by the public
// translate_a/single endpoint (client=gtx, no API key). The response is
// a nested JSON array; element [0] holds [translated, original, ...]
// pairs per sentence.
func NewGoogleTranslator(client *http.Client) TranslateFunc {
	return func(ctx context.Context, text, src string) (string, error) {
		params := url.Values{
			"client": {"gtx"},
			"sl":     {src},
			"tl":     {"en"},
			"dt":     {"t"},
			"q":      {text},
		}

		resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, gtxEndpoint+"?"+params.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", RandomUserAgent())
			return client.Do(req)
		})
		if err != nil {
			return "", fmt.Errorf("translate: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
		if err != nil {
			return "", fmt.Errorf("translate: read response: %w", err)
		}

		translated, err := parseGtxResponse(body)
		if err != nil {
			return "", fmt.Errorf("translate: %w", err)
		}
		IncrTranslations()
		return translated, nil
	}
}

// parseGtxResponse joins the translated sentence fragments from a gtx
// response body.
func parseGtxResponse(body []byte) (string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return "", fmt.Errorf("decode outer array: %w", err)
	}
	if len(outer) == 0 {
		return "", fmt.Errorf("empty response array")
	}

	var sentences [][]json.RawMessage
	if err := json.Unmarshal(outer[0], &sentences); err != nil {
		return "", fmt.Errorf("decode sentence array: %w", err)
	}

	var sb strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		var fragment string
		if err := json.Unmarshal(sentence[0], &fragment); err != nil {
			continue
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}
