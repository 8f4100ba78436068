package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"
)

// SurfaceClient publishes control-surface views through the platform's
// message API. A vanished host or surface comes back as an error the
// synchronizer logs and swallows.
type SurfaceClient struct {
	client *Client
}

func NewSurfaceClient(client *Client) *SurfaceClient {
	return &SurfaceClient{client: client}
}

var _ ports.SurfaceHost = (*SurfaceClient)(nil)

type publishResponse struct {
	SurfaceID domain.SurfaceID `json:"surface_id"`
}

func (s *SurfaceClient) Publish(ctx context.Context, host domain.ChannelID, view *domain.SurfaceView) (domain.SurfaceID, error) {
	var resp publishResponse
	err := s.client.do(ctx, http.MethodPost,
		fmt.Sprintf("/channels/%s/surfaces", url.PathEscape(string(host))),
		view, &resp, nil)
	if err != nil {
		return "", err
	}
	return resp.SurfaceID, nil
}

func (s *SurfaceClient) Update(ctx context.Context, ref domain.SurfaceRef, view *domain.SurfaceView) error {
	return s.client.do(ctx, http.MethodPut,
		fmt.Sprintf("/surfaces/%s", url.PathEscape(string(ref.SurfaceID))),
		view, nil, nil)
}

func (s *SurfaceClient) Remove(ctx context.Context, ref domain.SurfaceRef) error {
	return s.client.do(ctx, http.MethodDelete,
		fmt.Sprintf("/surfaces/%s", url.PathEscape(string(ref.SurfaceID))),
		nil, nil, []int{http.StatusNotFound})
}
