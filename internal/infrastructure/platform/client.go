package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"go.uber.org/zap"
)

// Client talks to the platform's REST API: channel allocation, ACL
// overrides, rosters and member lookups. Each call is independently
// fallible; callers decide what is fatal.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.SugaredLogger
}

func NewClient(baseURL, token string, logger *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ ports.ChannelGateway = (*Client)(nil)

type createChannelRequest struct {
	CategoryID string                 `json:"category_id"`
	Name       string                 `json:"name"`
	Settings   domain.ChannelSettings `json:"settings"`
}

type createChannelResponse struct {
	ChannelID domain.ChannelID `json:"channel_id"`
}

func (c *Client) CreateChannel(ctx context.Context, communityID domain.CommunityID, categoryID, name string, settings domain.ChannelSettings) (domain.ChannelID, error) {
	var resp createChannelResponse
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/communities/%s/channels", url.PathEscape(string(communityID))),
		createChannelRequest{CategoryID: categoryID, Name: name, Settings: settings},
		&resp, nil)
	if err != nil {
		return "", err
	}
	return resp.ChannelID, nil
}

func (c *Client) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	// 404 means someone beat us to it; that is success here.
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/channels/%s", url.PathEscape(string(id))),
		nil, nil, []int{http.StatusNotFound})
}

func (c *Client) ChannelExists(ctx context.Context, id domain.ChannelID) (bool, error) {
	status, err := c.head(ctx, fmt.Sprintf("/channels/%s", url.PathEscape(string(id))))
	if err != nil {
		return false, err
	}
	return status != http.StatusNotFound, nil
}

func (c *Client) SetChannelProperties(ctx context.Context, id domain.ChannelID, props ports.ChannelProperties) error {
	body := map[string]interface{}{}
	if props.Name != nil {
		body["name"] = *props.Name
	}
	if props.UserLimit != nil {
		body["user_limit"] = *props.UserLimit
	}
	if props.Bitrate != nil {
		body["bitrate"] = *props.Bitrate
	}
	if props.Region != nil {
		body["region"] = *props.Region
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch,
		fmt.Sprintf("/channels/%s", url.PathEscape(string(id))),
		body, nil, nil)
}

type overrideRequest struct {
	View    *bool `json:"view,omitempty"`
	Connect *bool `json:"connect,omitempty"`
}

func (c *Client) SetOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID, override ports.PermissionOverride) error {
	return c.do(ctx, http.MethodPut,
		fmt.Sprintf("/channels/%s/overrides/%s", url.PathEscape(string(id)), url.PathEscape(string(subject))),
		overrideRequest{View: override.View, Connect: override.Connect}, nil, nil)
}

func (c *Client) ClearOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID) error {
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/channels/%s/overrides/%s", url.PathEscape(string(id)), url.PathEscape(string(subject))),
		nil, nil, []int{http.StatusNotFound})
}

func (c *Client) ClearAllOverrides(ctx context.Context, id domain.ChannelID, keep []domain.MemberID) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/overrides/clear", url.PathEscape(string(id))),
		map[string]interface{}{"keep": keep}, nil, nil)
}

func (c *Client) ForceDisconnect(ctx context.Context, id domain.ChannelID, member domain.MemberID) error {
	return c.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/disconnect", url.PathEscape(string(id))),
		map[string]interface{}{"member_id": member}, nil, []int{http.StatusNotFound})
}

func (c *Client) Roster(ctx context.Context, id domain.ChannelID) ([]domain.RosterEntry, error) {
	var roster []domain.RosterEntry
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/channels/%s/roster", url.PathEscape(string(id))),
		nil, &roster, nil)
	if err != nil {
		return nil, err
	}
	return roster, nil
}

func (c *Client) ResolveMember(ctx context.Context, communityID domain.CommunityID, id domain.MemberID) (*domain.Member, error) {
	var member domain.Member
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/communities/%s/members/%s", url.PathEscape(string(communityID)), url.PathEscape(string(id))),
		nil, &member, nil)
	if isStatus(err, http.StatusNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// statusError carries the HTTP status of a failed platform call.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("platform returned %d: %s", e.Status, e.Body)
}

func isStatus(err error, status int) bool {
	se, ok := err.(*statusError)
	return ok && se.Status == status
}

// do issues one JSON request. Statuses listed in tolerate are treated as
// success with an empty body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, tolerate []int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}

	for _, s := range tolerate {
		if resp.StatusCode == s {
			return nil
		}
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{Status: resp.StatusCode, Body: string(data)}
}

func (c *Client) head(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("platform call failed: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
