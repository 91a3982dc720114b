package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	BaseURL = "https://api.themoviedb.org/3"
)

type Client struct {
	client  *resty.Client
	Token   string
	baseURL string
}

func NewClient(token string, proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	c.SetHeader("Authorization", "Bearer "+token)
	c.SetHeader("Content-Type", "application/json")

	return &Client{
		client:  c,
		Token:   token,
		baseURL: BaseURL,
	}
}

// SetBaseURL 测试或自建反代时使用
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type SearchResponse struct {
	Results []MultiResult `json:"results"`
}

// MultiResult /search/multi 的一条结果，MediaType 为 tv / movie / person
type MultiResult struct {
	ID           int    `json:"id"`
	MediaType    string `json:"media_type"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
	ReleaseDate  string `json:"release_date"`
}

type Translation struct {
	Language string `json:"iso_639_1"`
	Region   string `json:"iso_3166_1"`
	Data     struct {
		Name  string `json:"name"`
		Title string `json:"title"`
	} `json:"data"`
}

// Title tv 用 name，movie 用 title
func (t Translation) Title() string {
	if t.Data.Name != "" {
		return t.Data.Name
	}
	return t.Data.Title
}

type TranslationsResponse struct {
	Translations []Translation `json:"translations"`
}

// SearchMulti searches tv and movies in one request
func (c *Client) SearchMulti(ctx context.Context, query, language string) ([]MultiResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetQueryParam("language", language).
		SetQueryParam("include_adult", "false").
		SetQueryParam("page", "1").
		Get(c.baseURL + "/search/multi")

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("TMDB Error: %s", resp.Status())
	}

	var result SearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// Translations fetches all translated titles of a tv show or movie
func (c *Client) Translations(ctx context.Context, mediaType string, id int) ([]Translation, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/%s/%d/translations", c.baseURL, mediaType, id))

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("TMDB Error: %s", resp.Status())
	}

	var result TranslationsResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return result.Translations, nil
}
