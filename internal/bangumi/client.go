package bangumi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	APIBaseURL = "https://api.bgm.tv"
	UserAgent  = "AnimeFolderOrganizer/1.0"
)

type Client struct {
	client  *resty.Client
	baseURL string
}

func NewClient() *Client {
	return &Client{
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", UserAgent).
			SetHeader("Accept", "application/json"),
		baseURL: APIBaseURL,
	}
}

func (c *Client) SetProxy(proxyURL string) {
	if proxyURL != "" {
		c.client.SetProxy(proxyURL)
	}
}

// SetBaseURL 测试时指向本地服务
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SearchSubjects searches anime subjects (type=2) by keyword
func (c *Client) SearchSubjects(ctx context.Context, keyword string) ([]SearchResult, error) {
	// GET https://api.bgm.tv/search/subject/{keywords}?type=2&responseGroup=small
	u := fmt.Sprintf("%s/search/subject/%s", c.baseURL, url.PathEscape(keyword))

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("type", "2").
		SetQueryParam("responseGroup", "small").
		Get(u)

	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search failed: %s", resp.Status())
	}

	var result struct {
		List []SearchResult `json:"list"`
	}
	// 无结果时接口返回的不一定是 JSON 对象
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, nil
	}
	return result.List, nil
}

// GetSubject 先走 v0 接口，失败后退回旧版接口
func (c *Client) GetSubject(ctx context.Context, id int) (*Subject, error) {
	// GET https://api.bgm.tv/v0/subjects/{subject_id}
	var subject Subject
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/v0/subjects/%d", c.baseURL, id))
	if err == nil && !resp.IsError() {
		if err := json.Unmarshal(resp.Body(), &subject); err == nil && subject.ID != 0 {
			return &subject, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// GET https://api.bgm.tv/subject/{subject_id}?responseGroup=small
	resp, err = c.client.R().
		SetContext(ctx).
		SetQueryParam("responseGroup", "small").
		Get(fmt.Sprintf("%s/subject/%d", c.baseURL, id))
	if err == nil && !resp.IsError() {
		if err := json.Unmarshal(resp.Body(), &subject); err == nil && subject.ID != 0 {
			return &subject, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("fetch subject %d failed", id)
}
