package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/metamate-app/metamate/internal/config"
)

// Client talks to the free Google Translate endpoint. Detection and
// translation never block the chat pipeline; every failure degrades to
// English / the original text.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a translation client
func NewClient(cfg *config.Translate) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutS) * time.Second,
		},
	}
}

// Detect returns the ISO 639-1 language code of the text, "en" on any failure.
func (c *Client) Detect(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}

	payload, err := c.query(ctx, "auto", "en", text)
	if err != nil {
		log.Printf("Language detection failed, assuming English: %v", err)
		return "en"
	}

	// The detected source language sits at index 2 of the response array
	if len(payload) > 2 {
		var lang string
		if err := json.Unmarshal(payload[2], &lang); err == nil && lang != "" {
			return lang
		}
	}

	return "en"
}

// Translate converts text between languages. Same-language calls short-circuit
// without touching the network; failures return the text unchanged.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	if strings.TrimSpace(text) == "" || sourceLang == targetLang {
		return text
	}

	payload, err := c.query(ctx, sourceLang, targetLang, text)
	if err != nil {
		log.Printf("Translation %s->%s failed, returning original: %v", sourceLang, targetLang, err)
		return text
	}

	translated := joinSegments(payload)
	if translated == "" {
		return text
	}

	return restoreURLs(text, translated)
}

// query performs one translate_a/single call and returns the top-level
// response array raw, so callers can pick the parts they need.
func (c *Client) query(ctx context.Context, sourceLang, targetLang, text string) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", sourceLang)
	params.Set("tl", targetLang)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unexpected response shape: %w", err)
	}

	return payload, nil
}

// joinSegments concatenates the translated sentence segments from payload[0].
// Each segment is an array whose first element is the translated text.
func joinSegments(payload []json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	var segments []json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, seg := range segments {
		var parts []json.RawMessage
		if err := json.Unmarshal(seg, &parts); err != nil || len(parts) == 0 {
			continue
		}
		var text string
		if err := json.Unmarshal(parts[0], &text); err != nil {
			continue
		}
		sb.WriteString(text)
	}

	return sb.String()
}

// restoreURLs swaps mangled URLs in the translated text back to the originals.
// Translation engines routinely break URLs by inserting spaces or translating
// path words.
func restoreURLs(original, translated string) string {
	originalURLs := findURLs(original)
	if len(originalURLs) == 0 {
		return translated
	}

	translatedURLs := findURLs(translated)
	for i, u := range translatedURLs {
		if i < len(originalURLs) && u != originalURLs[i] {
			translated = strings.Replace(translated, u, originalURLs[i], 1)
		}
	}

	// URLs the translation dropped entirely get appended
	for _, u := range originalURLs {
		if !strings.Contains(translated, u) {
			translated += " " + u
		}
	}

	return translated
}

func findURLs(text string) []string {
	var urls []string
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			urls = append(urls, strings.TrimRight(word, ".,;!?"))
		}
	}
	return urls
}
