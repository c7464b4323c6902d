package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/container-tracker/internal/tracker"
	"github.com/noah-isme/container-tracker/internal/tracking"
)

// DefaultDispatchTimeout bounds one HTTP dispatch.
const DefaultDispatchTimeout = 60 * time.Second

// Dispatcher runs the track-and-notify operation for a single request. A nil
// error means the report was delivered.
type Dispatcher interface {
	Dispatch(ctx context.Context, req tracking.Request) error
}

type trackService interface {
	TrackAndNotify(ctx context.Context, req tracking.Request) (tracker.Result, error)
}

// InProcess calls the tracking service directly.
type InProcess struct {
	Service trackService
}

func (d InProcess) Dispatch(ctx context.Context, req tracking.Request) error {
	if d.Service == nil {
		return errors.New("schedule: tracking service not configured")
	}
	_, err := d.Service.TrackAndNotify(ctx, req)
	return err
}

// TokenSigner mints a bearer token naming the requester.
type TokenSigner interface {
	Sign(subject string) (string, error)
}

// HTTPDispatcher posts each request to the API's track-and-notify route.
// With Tokens set, the request's RequesterID travels as a signed bearer
// token so the API logs the same requester as an in-process dispatch.
// Without it the API records the default requester.
type HTTPDispatcher struct {
	BaseURL string
	Client  *http.Client
	// Timeout defaults to DefaultDispatchTimeout.
	Timeout time.Duration
	Tokens  TokenSigner
}

type dispatchBody struct {
	EmailTo     string `json:"email_to"`
	ContainerNo string `json:"container_no"`
}

type dispatchReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (d HTTPDispatcher) Dispatch(ctx context.Context, req tracking.Request) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(dispatchBody{EmailTo: req.EmailTo, ContainerNo: req.ContainerNo})
	if err != nil {
		return err
	}
	target := strings.TrimRight(d.BaseURL, "/") + "/api/schedules/track-and-notify"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.Tokens != nil && strings.TrimSpace(req.RequesterID) != "" {
		token, err := d.Tokens.Sign(req.RequesterID)
		if err != nil {
			return fmt.Errorf("schedule: sign requester token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := clientOrDefault(d.Client).Do(httpReq)
	if err != nil {
		return fmt.Errorf("schedule: dispatch %s: %w", req.ContainerNo, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var reply dispatchReply
	if json.Unmarshal(raw, &reply) == nil && reply.Message != "" {
		return fmt.Errorf("schedule: dispatch %s: status %d: %s", req.ContainerNo, resp.StatusCode, reply.Message)
	}
	return fmt.Errorf("schedule: dispatch %s: status %d", req.ContainerNo, resp.StatusCode)
}
