// Package catalog resolves pokemon names to shiny sprite images via PokeAPI.
package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

const (
	DefaultAPIBase    = "https://pokeapi.co/api/v2"
	DefaultSpriteBase = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/home/shiny"

	femaleSuffix  = "-female"
	maxImageBytes = 2 << 20
	maxBodyBytes  = 8 << 20
)

// Request selects a pokemon.
type Request struct {
	Name   string `json:"name"`
	Female bool   `json:"female,omitempty"`
	// ImageOverride skips the lookup and is used as the image directly.
	ImageOverride string `json:"imageOverride,omitempty"`
	// FemaleOverride is an alternate details URL for forms whose female
	// variant is a separate entry; its sprite sits at the regular path.
	FemaleOverride string `json:"femaleOverride,omitempty"`
}

// Result is what gets stored on a counter.
type Result struct {
	Name     string `json:"name"`
	Image    string `json:"image"`
	Embedded bool   `json:"embedded"`
}

// Client looks up sprites.
type Client struct {
	apiBase    string
	spriteBase string
	embed      bool
	http       *http.Client
	logger     logger.Logger
}

// NewClient creates a client against the public PokeAPI by default.
func NewClient(opts ...Option) *Client {
	c := &Client{
		apiBase:    DefaultAPIBase,
		spriteBase: DefaultSpriteBase,
		embed:      true,
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves req. Image download failures fall back to the sprite URL;
// only the details lookup can fail.
func (c *Client) Lookup(ctx context.Context, req Request) (Result, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return Result{}, ErrNoName
	}
	stored := name
	if req.Female {
		stored += femaleSuffix
	}

	if req.ImageOverride != "" {
		metrics.RecordCatalogLookup("override")
		return Result{Name: stored, Image: req.ImageOverride}, nil
	}

	detailsURL := c.apiBase + "/pokemon/" + url.PathEscape(name)
	useOverride := req.Female && req.FemaleOverride != ""
	if useOverride {
		detailsURL = req.FemaleOverride
	}

	id, err := c.pokemonID(ctx, detailsURL)
	if err != nil {
		metrics.RecordCatalogLookup("error")
		return Result{}, err
	}

	imageURL := c.spriteBase + "/" + strconv.Itoa(id) + ".png"
	if req.Female && !useOverride {
		imageURL = c.spriteBase + "/female/" + strconv.Itoa(id) + ".png"
	}

	if !c.embed {
		metrics.RecordCatalogLookup("url")
		return Result{Name: stored, Image: imageURL}, nil
	}
	data, err := c.dataURL(ctx, imageURL)
	if err != nil {
		c.logger.Warn(ctx, "sprite download failed, using url",
			logger.String("url", imageURL),
			logger.Error(err),
		)
		metrics.RecordCatalogLookup("fallback")
		return Result{Name: stored, Image: imageURL}, nil
	}
	metrics.RecordCatalogLookup("embedded")
	return Result{Name: stored, Image: data, Embedded: true}, nil
}

func (c *Client) pokemonID(ctx context.Context, detailsURL string) (int, error) {
	resp, err := c.get(ctx, detailsURL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var details struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&details); err != nil {
		return 0, fmt.Errorf("decode %s: %w", detailsURL, err)
	}
	if details.ID <= 0 {
		return 0, fmt.Errorf("%w: %s has no id", ErrNotFound, detailsURL)
	}
	return details.ID, nil
}

func (c *Client) dataURL(ctx context.Context, imageURL string) (string, error) {
	resp, err := c.get(ctx, imageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", imageURL, err)
	}
	if len(body) > maxImageBytes {
		return "", fmt.Errorf("image %s exceeds %d bytes", imageURL, maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || strings.HasPrefix(mime, "application/octet-stream") || strings.HasPrefix(mime, "text/plain") {
		mime = http.DetectContentType(body)
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrBadStatus, target, resp.StatusCode)
	}
	return resp, nil
}
