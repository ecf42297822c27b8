package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"StandardsCrawler/internal/domain"
	"StandardsCrawler/internal/extract"
	"StandardsCrawler/internal/ports"
)

const maxCaptchaBytes = 1 << 20

var (
	_ ports.DetailSource   = (*Client)(nil)
	_ ports.DocumentPortal = (*Client)(nil)
)

// FetchDetail downloads /stdDetail/<pk> and runs the section extractor on it.
func (c *Client) FetchDetail(ctx context.Context, pk string) (domain.DetailInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(c.cfg.DetailPath, pk), nil)
	if err != nil {
		return domain.DetailInfo{}, err
	}

	body, err := c.do(c.http, req)
	if err != nil {
		return domain.DetailInfo{}, err
	}
	defer body.Close()

	return extract.ExtractHTML(body, pk)
}

// CaptchaImage fetches a fresh captcha for pk; the timestamp defeats caching.
func (c *Client) CaptchaImage(ctx context.Context, pk string) ([]byte, error) {
	query := url.Values{}
	query.Set("pk", pk)
	query.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(c.cfg.CaptchaImagePath)+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(c.http, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	image, err := io.ReadAll(io.LimitReader(body, maxCaptchaBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read captcha: %v", domain.ErrFetch, err)
	}
	return image, nil
}

// ValidateCaptcha submits the recognized text. A response without a code is treated as rejected.
func (c *Client) ValidateCaptcha(ctx context.Context, pk, captcha string) (domain.CaptchaVerdict, error) {
	form := url.Values{}
	form.Set("captcha", captcha)
	form.Set("pk", pk)

	body, err := c.postForm(ctx, c.endpoint(c.cfg.CaptchaValidatePath), form)
	if err != nil {
		return domain.CaptchaVerdict{}, err
	}
	defer body.Close()

	var resp struct {
		Code *int   `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return domain.CaptchaVerdict{}, fmt.Errorf("%w: decode captcha verdict: %v", domain.ErrParse, err)
	}

	verdict := domain.CaptchaVerdict{Code: -1, Message: resp.Msg}
	if resp.Code != nil {
		verdict.Code = *resp.Code
	}
	return verdict, nil
}

// DownloadDocument streams /portal/download/<token> into dst.
func (c *Client) DownloadDocument(ctx context.Context, token string, dst io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint(c.cfg.DownloadPath, token), nil)
	if err != nil {
		return 0, err
	}

	body, err := c.do(c.download, req)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(dst, body)
	if err != nil {
		return n, fmt.Errorf("%w: copy document: %v", domain.ErrFetch, err)
	}
	return n, nil
}
