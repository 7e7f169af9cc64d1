package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/transfer"
)

// InstagramClient runs the container-based publish protocol against the
// remote platform through the publish proxy. Every call is stateless
// and carries the tenant's account context; there is no fallback to a
// shared default account.
type InstagramClient interface {
	CheckQuota(ctx context.Context, acct models.AccountContext) (*transfer.QuotaUsage, error)
	CreateContainer(ctx context.Context, kind, mediaURL, caption string, acct models.AccountContext) (string, error)
	CreateCarouselContainer(ctx context.Context, mediaURLs []string, caption string, acct models.AccountContext) (string, error)
	GetContainerStatus(ctx context.Context, containerID string, acct models.AccountContext) (transfer.ContainerStatus, error)
	Publish(ctx context.Context, containerID string, acct models.AccountContext) (string, error)
	PublishCarousel(ctx context.Context, containerID string, acct models.AccountContext) (string, error)
}

type instagramClient struct {
	proxyURL   string
	quotaLimit int
	http       *http.Client
}

func NewInstagramClient(cfg config.Config) InstagramClient {
	return &instagramClient{
		proxyURL:   cfg.Publisher.ProxyURL,
		quotaLimit: cfg.Publisher.QuotaLimit,
		http:       &http.Client{Timeout: 2 * time.Minute},
	}
}

const (
	toolCheckQuota      = "check_publish_quota"
	toolCreateContainer = "create_media_container"
	toolCreateCarousel  = "create_carousel_container"
	toolContainerStatus = "get_container_status"
	toolPublishMedia    = "publish_media"
	toolPublishCarousel = "publish_carousel"
)

// toolRequest is the JSON-RPC 2.0 envelope the proxy expects. The
// tenant fields ride alongside the envelope so the proxy can resolve
// per-tenant credentials server-side.
type toolRequest struct {
	JSONRPC            string     `json:"jsonrpc"`
	ID                 int        `json:"id"`
	Method             string     `json:"method"`
	Params             toolParams `json:"params"`
	InstagramAccountID string     `json:"instagram_account_id"`
	UserID             int64      `json:"user_id"`
	OrganizationID     int64      `json:"organization_id"`
}

type toolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

func (c *instagramClient) CheckQuota(ctx context.Context, acct models.AccountContext) (*transfer.QuotaUsage, error) {
	payload, err := c.callTool(ctx, toolCheckQuota, map[string]interface{}{}, acct)
	if err != nil {
		return nil, err
	}

	var usage transfer.QuotaUsage
	if err := json.Unmarshal(payload, &usage); err != nil {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: string(payload)}
	}
	if usage.Limit == 0 {
		usage.Limit = c.quotaLimit
	}
	usage.Remaining = usage.Limit - usage.Used
	if usage.Remaining < 0 {
		usage.Remaining = 0
	}
	return &usage, nil
}

// CreateContainer stages a single photo, video, reel or story. Stories
// never carry a caption; reels and videos send the media as a video
// URL.
func (c *instagramClient) CreateContainer(ctx context.Context, kind, mediaURL, caption string, acct models.AccountContext) (string, error) {
	args := map[string]interface{}{
		"media_type": kind,
	}

	switch kind {
	case models.RemoteTypeVideo, models.RemoteTypeReel:
		args["video_url"] = mediaURL
	case models.RemoteTypePhoto, models.RemoteTypeStory:
		args["image_url"] = mediaURL
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("unknown media kind %q", kind)}
	}

	if kind != models.RemoteTypeStory && caption != "" {
		args["caption"] = caption
	}

	payload, err := c.callTool(ctx, toolCreateContainer, args, acct)
	if err != nil {
		return "", err
	}
	return containerIDFrom(payload)
}

// CreateCarouselContainer partitions the media into image and video
// entries by URL extension and stages them as one carousel.
func (c *instagramClient) CreateCarouselContainer(ctx context.Context, mediaURLs []string, caption string, acct models.AccountContext) (string, error) {
	if len(mediaURLs) < 2 {
		return "", &ValidationError{Reason: "a carousel needs at least 2 media items"}
	}

	children := make([]map[string]string, 0, len(mediaURLs))
	for _, u := range mediaURLs {
		if IsVideoURL(u) {
			children = append(children, map[string]string{"video_url": u})
		} else {
			children = append(children, map[string]string{"image_url": u})
		}
	}

	args := map[string]interface{}{
		"children": children,
	}
	if caption != "" {
		args["caption"] = caption
	}

	payload, err := c.callTool(ctx, toolCreateCarousel, args, acct)
	if err != nil {
		return "", err
	}
	return containerIDFrom(payload)
}

func (c *instagramClient) GetContainerStatus(ctx context.Context, containerID string, acct models.AccountContext) (transfer.ContainerStatus, error) {
	payload, err := c.callTool(ctx, toolContainerStatus, map[string]interface{}{
		"container_id": containerID,
	}, acct)
	if err != nil {
		return "", err
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", &ProtocolError{StatusCode: http.StatusOK, Body: string(payload)}
	}

	// The platform's vocabulary is wider than we care about; collapse
	// it to the 3-way set the orchestrator's polling loop understands.
	switch strings.ToUpper(result.Status) {
	case "FINISHED", "PUBLISHED":
		return transfer.ContainerFinished, nil
	case "ERROR", "EXPIRED":
		return transfer.ContainerError, nil
	default:
		return transfer.ContainerInProgress, nil
	}
}

func (c *instagramClient) Publish(ctx context.Context, containerID string, acct models.AccountContext) (string, error) {
	return c.publish(ctx, toolPublishMedia, containerID, acct)
}

func (c *instagramClient) PublishCarousel(ctx context.Context, containerID string, acct models.AccountContext) (string, error) {
	return c.publish(ctx, toolPublishCarousel, containerID, acct)
}

func (c *instagramClient) publish(ctx context.Context, tool, containerID string, acct models.AccountContext) (string, error) {
	payload, err := c.callTool(ctx, tool, map[string]interface{}{
		"container_id": containerID,
	}, acct)
	if err != nil {
		return "", err
	}

	var result struct {
		MediaID string `json:"media_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", &ProtocolError{StatusCode: http.StatusOK, Body: string(payload)}
	}
	if result.MediaID != "" {
		return result.MediaID, nil
	}
	if result.ID != "" {
		return result.ID, nil
	}
	return "", &ProtocolError{StatusCode: http.StatusOK, Body: "no media ID returned from publish"}
}

// callTool sends one tools/call request and returns the decoded inner
// tool payload. All wire-level error classification happens here.
func (c *instagramClient) callTool(ctx context.Context, name string, args map[string]interface{}, acct models.AccountContext) (json.RawMessage, error) {
	if !acct.Valid() {
		return nil, &NotConfiguredError{}
	}

	reqBody := toolRequest{
		JSONRPC:            "2.0",
		ID:                 1,
		Method:             "tools/call",
		Params:             toolParams{Name: name, Arguments: args},
		InstagramAccountID: acct.InstagramAccountID,
		UserID:             acct.UserID,
		OrganizationID:     acct.OrganizationID,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.proxyURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusForbidden:
			slog.Info("publish proxy rejected account", "tool", name, "status", resp.StatusCode)
			return nil, &NotConfiguredError{}
		case http.StatusUnauthorized:
			return nil, &CredentialExpiredError{}
		case http.StatusTooManyRequests:
			return nil, &QuotaExceededError{Limit: c.quotaLimit}
		default:
			return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}
	}

	return decodeToolResult(resp.Body)
}

// decodeToolResult unwraps the proxy's nested framing: the response is
// a text/event-stream whose first data: line holds a JSON-RPC result,
// and the actual tool payload sits inside result.content[0].text as a
// JSON string. Nothing outside this function touches the raw nesting.
func decodeToolResult(body io.Reader) (json.RawMessage, error) {
	var data string
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if data == "" {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: "no data frame in response"}
	}

	var envelope struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: data}
	}
	if envelope.Error != nil {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: envelope.Error.Message}
	}
	if len(envelope.Result.Content) == 0 {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: data}
	}

	text := envelope.Result.Content[0].Text
	if envelope.Result.IsError {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: text}
	}

	if !json.Valid([]byte(text)) {
		return nil, &ProtocolError{StatusCode: http.StatusOK, Body: text}
	}
	return json.RawMessage(text), nil
}

func containerIDFrom(payload json.RawMessage) (string, error) {
	var result struct {
		ContainerID string `json:"container_id"`
		ID          string `json:"id"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", &ProtocolError{StatusCode: http.StatusOK, Body: string(payload)}
	}
	if result.ContainerID != "" {
		return result.ContainerID, nil
	}
	if result.ID != "" {
		return result.ID, nil
	}
	return "", &ProtocolError{StatusCode: http.StatusOK, Body: "no container ID returned"}
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".m4v": {}, ".webm": {}, ".avi": {},
}

// IsVideoURL decides the image/video bucket for carousel children from
// the URL path extension.
func IsVideoURL(mediaURL string) bool {
	p := mediaURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(path.Ext(p))
	_, ok := videoExtensions[ext]
	return ok
}
