package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoPage is returned when the title does not resolve to an article.
var ErrNoPage = errors.New("wikipedia: page not found")

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  userAgent,
	}
}

func apiURL(lang string) string {
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

func (c *Client) get(ctx context.Context, lang string, params url.Values, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL(lang)+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// FetchIntro returns the plain-text lead section of an article, following redirects.
func (c *Client) FetchIntro(ctx context.Context, lang, title string) (*Page, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("format", "json")
	params.Set("titles", strings.ReplaceAll(title, " ", "_"))

	var apiResp ExtractResponse
	if err := c.get(ctx, lang, params, &apiResp); err != nil {
		return nil, err
	}
	for id, page := range apiResp.Query.Pages {
		if id == "-1" || page.Missing != nil || strings.TrimSpace(page.Extract) == "" {
			continue
		}
		return &page, nil
	}
	return nil, fmt.Errorf("%s: %w", title, ErrNoPage)
}
