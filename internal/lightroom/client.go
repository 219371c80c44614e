package lightroom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// jsonGuard is the anti-JSON-hijacking prefix the Lightroom API prepends to
// every JSON response body. It must be stripped before parsing.
const jsonGuard = "while (1) {}\n"

// DefaultBaseURL is the production Lightroom partner API root.
const DefaultBaseURL = "https://lr.adobe.io/v2"

// Client is a bearer-token-authenticated client for the Lightroom partner
// API: catalog lookup, paginated album and asset listing, and rendition
// download at named size presets.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a Client. apiKey is the Adobe client ID, sent as
// X-API-Key on every request. A nil httpClient gets a sane default.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Catalog is the host-side catalog resource.
type Catalog struct {
	Name string
	Href string
}

// Album is one album resource from the host's album list.
type Album struct {
	ID   string
	Name string
	Href string
}

// Asset is one asset resource from a per-album asset list.
type Asset struct {
	ID   string
	Href string
}

// ErrRenditionNotFound reports a 404 for a requested rendition size, so the
// caller can fall back to a smaller preset.
var ErrRenditionNotFound = fmt.Errorf("rendition not found at requested size")

type selfLink struct {
	Self struct {
		Href string `json:"href"`
	} `json:"self"`
	Next *struct {
		Href string `json:"href"`
	} `json:"next"`
}

type catalogResponse struct {
	Payload struct {
		Name string `json:"name"`
	} `json:"payload"`
	Links selfLink `json:"links"`
}

type albumResource struct {
	ID      string `json:"id"`
	Payload struct {
		Name string `json:"name"`
	} `json:"payload"`
	Links selfLink `json:"links"`
}

type albumListResponse struct {
	Resources []albumResource `json:"resources"`
	Links     selfLink        `json:"links"`
}

type assetResource struct {
	Asset struct {
		ID    string   `json:"id"`
		Links selfLink `json:"links"`
	} `json:"asset"`
}

type assetListResponse struct {
	Resources []assetResource `json:"resources"`
	Links     selfLink        `json:"links"`
}

// Catalog fetches the caller's catalog resource.
func (c *Client) Catalog(ctx context.Context, token string) (*Catalog, error) {
	var res catalogResponse
	if _, err := c.getJSON(ctx, token, c.baseURL+"/catalog", &res); err != nil {
		return nil, err
	}
	return &Catalog{Name: res.Payload.Name, Href: res.Links.Self.Href}, nil
}

// Albums lists every album in the catalog, following next links until the
// host reports no more pages.
func (c *Client) Albums(ctx context.Context, token, catalogHref string) ([]Album, error) {
	var albums []Album
	reqURL := c.resourceURL(catalogHref, "albums")
	for reqURL != "" {
		var page albumListResponse
		base, err := c.getJSON(ctx, token, reqURL, &page)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Resources {
			albums = append(albums, Album{ID: r.ID, Name: r.Payload.Name, Href: r.Links.Self.Href})
		}
		reqURL = nextURL(base, page.Links)
	}
	return albums, nil
}

// Assets lists every asset of an album, following next links.
func (c *Client) Assets(ctx context.Context, token, catalogHref, albumHref string) ([]Asset, error) {
	var assets []Asset
	reqURL := c.resourceURL(catalogHref, albumHref+"/assets")
	for reqURL != "" {
		var page assetListResponse
		base, err := c.getJSON(ctx, token, reqURL, &page)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Resources {
			assets = append(assets, Asset{ID: r.Asset.ID, Href: r.Asset.Links.Self.Href})
		}
		reqURL = nextURL(base, page.Links)
	}
	return assets, nil
}

// Rendition downloads the JPEG rendition of an asset at a named size preset.
// Returns ErrRenditionNotFound when the host has no rendition at that size.
func (c *Client) Rendition(ctx context.Context, token, catalogHref, assetHref, size string) ([]byte, error) {
	reqURL := c.resourceURL(catalogHref, assetHref+"/renditions/"+size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)
	req.Header.Set("Accept", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rendition: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrRenditionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host returned status %d for rendition %s", resp.StatusCode, size)
	}
	return io.ReadAll(resp.Body)
}

// resourceURL joins a catalog-relative resource path onto the API base.
func (c *Client) resourceURL(catalogHref string, path string) string {
	return c.baseURL + "/" + strings.Trim(catalogHref, "/") + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
}

// getJSON fetches reqURL, strips the guard prefix and decodes into out. It
// returns the parsed request URL so relative next links can be resolved.
func (c *Client) getJSON(ctx context.Context, token, reqURL string, out any) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("host request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("host returned status %d for %s", resp.StatusCode, req.URL.Path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read host response: %w", err)
	}
	body = []byte(strings.TrimPrefix(string(body), jsonGuard))

	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to parse host response: %w", err)
	}
	return req.URL, nil
}

// nextURL resolves a page's next link against the URL that produced it.
// Returns "" when the listing is exhausted.
func nextURL(base *url.URL, links selfLink) string {
	if links.Next == nil || links.Next.Href == "" {
		return ""
	}
	ref, err := url.Parse(links.Next.Href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
