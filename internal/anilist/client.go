package anilist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	GraphQLEndpoint = "https://graphql.anilist.co"
)

type Client struct {
	client   *resty.Client
	endpoint string
}

func NewClient(proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(10 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	c.SetHeader("Content-Type", "application/json")
	c.SetHeader("Accept", "application/json")

	return &Client{
		client:   c,
		endpoint: GraphQLEndpoint,
	}
}

// SetEndpoint 测试时指向本地服务
func (c *Client) SetEndpoint(u string) {
	c.endpoint = u
}

type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type Media struct {
	ID         int        `json:"id"`
	Title      MediaTitle `json:"title"`
	Format     string     `json:"format"`
	SeasonYear int        `json:"seasonYear"`
}

type PageData struct {
	Media []Media `json:"media"`
}

type SearchResponseData struct {
	Page PageData `json:"Page"`
}

type SearchResponse struct {
	Data   SearchResponseData `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const searchQuery = `
query ($search: String) {
  Page(page: 1, perPage: 1) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {
      id
      title {
        romaji
        english
        native
      }
      format
      seasonYear
    }
  }
}
`

// SearchAnime 返回最匹配的一条，没有结果时返回 nil
func (c *Client) SearchAnime(ctx context.Context, query string) (*Media, error) {
	payload := map[string]interface{}{
		"query": searchQuery,
		"variables": map[string]interface{}{
			"search": query,
		},
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.endpoint)

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("AniList API Error: %s", resp.Status())
	}

	var result SearchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("AniList GraphQL Error: %s", result.Errors[0].Message)
	}

	if len(result.Data.Page.Media) > 0 {
		return &result.Data.Page.Media[0], nil
	}

	return nil, nil
}
