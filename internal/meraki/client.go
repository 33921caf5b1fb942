package meraki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
)

const (
	apiKeyHeader = "X-Cisco-Meraki-API-Key"

	// maxPageSize is the largest perPage the devices endpoint accepts.
	maxPageSize = 1000

	// maxPages stops a misbehaving server from paging forever.
	maxPages = 500
)

// Device is one entry of GET /organizations/{organizationId}/devices.
type Device struct {
	Serial      string   `json:"serial"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	ProductType string   `json:"productType"`
	NetworkID   string   `json:"networkId"`
	MAC         string   `json:"mac"`
	Firmware    string   `json:"firmware"`
	LanIP       string   `json:"lanIp"`
	Tags        []string `json:"tags"`
}

// apiError is the Dashboard API error envelope.
type apiError struct {
	Errors []string `json:"errors"`
}

// Client calls the Dashboard API.
type Client struct {
	http     *resty.Client
	base     *url.URL
	pageSize int
	logger   Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg config.MerakiConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	base, _ := url.Parse(baseURL)

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return &Client{
		http:     httpClient,
		base:     base,
		pageSize: pageSize,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetRetryWait overrides the wait between retries.
func (c *Client) SetRetryWait(minWait, maxWait time.Duration) {
	c.http.SetRetryWaitTime(minWait).SetRetryMaxWaitTime(maxWait)
}

// ListOrganizationDevices returns every device in the organization, following
// pagination until the server stops sending a next link.
func (c *Client) ListOrganizationDevices(ctx context.Context, apiKey, organizationID string) ([]Device, error) {
	if apiKey == "" || organizationID == "" {
		return nil, ErrMissingCredentials
	}

	var devices []Device
	next := "/organizations/" + url.PathEscape(organizationID) + "/devices"
	first := true

	for page := 1; next != ""; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("%w: more than %d pages for organization %s", ErrRequestFailed, maxPages, organizationID)
		}

		req := c.http.R().
			SetContext(ctx).
			SetHeader(apiKeyHeader, apiKey).
			ForceContentType("application/json")
		if first {
			req.SetQueryParam("perPage", strconv.Itoa(c.pageSize))
			first = false
		}

		var batch []Device
		var apiErr apiError
		resp, err := req.SetResult(&batch).SetError(&apiErr).Get(next)
		if err != nil {
			return nil, fmt.Errorf("%w: listing devices for organization %s: %w", ErrRequestFailed, organizationID, err)
		}
		if err := statusError(resp.StatusCode(), apiErr); err != nil {
			c.logger.Warn("meraki request rejected",
				"organization_id", organizationID,
				"status", resp.StatusCode(),
				"page", page,
			)
			return nil, fmt.Errorf("listing devices for organization %s: %w", organizationID, err)
		}

		devices = append(devices, batch...)
		next = nextLink(resp.Header().Get("Link"))
		if next != "" && !c.sameOrigin(next) {
			c.logger.Warn("meraki next link leaves the API host",
				"organization_id", organizationID,
				"page", page,
			)
			return nil, fmt.Errorf("%w: next page link for organization %s points off the API host", ErrRequestFailed, organizationID)
		}
	}

	c.logger.Debug("meraki devices listed", "organization_id", organizationID, "count", len(devices))
	return devices, nil
}

func statusError(status int, body apiError) error {
	if status >= 200 && status < 300 {
		return nil
	}
	detail := strings.Join(body.Errors, "; ")
	if detail == "" {
		detail = http.StatusText(status)
	}

	var base error
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		base = ErrUnauthorized
	case http.StatusNotFound:
		base = ErrNotFound
	default:
		base = ErrRequestFailed
	}
	return fmt.Errorf("%w: status %d: %s", base, status, detail)
}

// sameOrigin reports whether link is an absolute URL on the configured API
// scheme and host. The API key is only ever sent there.
func (c *Client) sameOrigin(link string) bool {
	if c.base == nil {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() {
		return false
	}
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}

// nextLink extracts the rel=next target from an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(key, "rel") && strings.EqualFold(strings.Trim(value, `"`), "next") {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

// IsAuthError reports whether err means the connection's credentials are bad.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrMissingCredentials)
}
