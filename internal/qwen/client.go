package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apierrors "github.com/airelay/qwen-bridge/internal/errors"
	"github.com/airelay/qwen-bridge/internal/logger"
	"github.com/airelay/qwen-bridge/internal/monitoring"
	"github.com/airelay/qwen-bridge/internal/types"
	"github.com/airelay/qwen-bridge/internal/utils"
)

// Backend endpoint paths
const (
	sessionPath    = "/api/v1/chats/new"
	completionPath = "/api/v1/chat/completions"
	credentialPath = "/api/v1/files/getstsToken"
)

// Client communicates with the upstream chat backend. Session and
// credential calls use a short per-call timeout; the chat call uses a
// long timeout because legitimate streams can run for minutes.
type Client struct {
	baseURL      string
	apiClient    *http.Client
	streamClient *http.Client
}

// NewClient creates a backend client for the given base URL
func NewClient(baseURL string, requestTimeout, chatTimeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		apiClient:    &http.Client{Timeout: requestTimeout},
		streamClient: &http.Client{Timeout: chatTimeout},
	}
}

// newRequest builds a JSON POST with auth and a fresh request ID
func (c *Client) newRequest(ctx context.Context, path string, body any, token string) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(utils.HeaderContentType, utils.ContentTypeJSON)
	req.Header.Set(utils.HeaderUserAgent, utils.ServiceName)
	req.Header.Set(utils.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(utils.HeaderRequestID, utils.GenerateRequestID())
	return req, nil
}

// CreateSession performs the synchronous backend round trip that some
// chat modes require before streaming can begin.
func (c *Client) CreateSession(ctx context.Context, mode, model, token string) (string, error) {
	ctx = logger.WithComponent(ctx, "qwen_client")
	start := time.Now()

	body := types.BackendSessionRequest{
		Title:     "New Chat",
		Models:    []string{model},
		ChatMode:  mode,
		Timestamp: time.Now().UnixMilli(),
	}

	req, err := c.newRequest(ctx, sessionPath, body, token)
	if err != nil {
		return "", apierrors.NewSessionError(err.Error())
	}

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return "", apierrors.NewSessionError(fmt.Sprintf("session creation call failed: %v", err))
	}
	defer resp.Body.Close()
	monitoring.Get().RecordUpstreamCall("create_session", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return "", statusError(apierrors.ErrorTypeSession, "session creation", resp)
	}

	var parsed types.BackendSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apierrors.NewSessionError(fmt.Sprintf("invalid session response: %v", err))
	}
	if !parsed.Success || parsed.Data.ID == "" {
		return "", apierrors.NewSessionError("backend did not return a session identifier")
	}

	logger.Debug(ctx, "Backend session created",
		"session_id", parsed.Data.ID,
		"chat_mode", mode,
		"model", model)
	return parsed.Data.ID, nil
}

// Completions issues the streaming chat call. The caller owns the
// response body and must close it.
func (c *Client) Completions(ctx context.Context, body *types.BackendRequest, sessionID, token string) (*http.Response, error) {
	ctx = logger.WithComponent(ctx, "qwen_client")

	path := completionPath
	if sessionID != "" {
		path += "?chat_id=" + sessionID
	}

	req, err := c.newRequest(ctx, path, body, token)
	if err != nil {
		return nil, apierrors.NewInternalError(err.Error())
	}
	req.Header.Set(utils.HeaderAccept, utils.ContentTypeEventStream)

	start := time.Now()
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, apierrors.NewUpstreamTransientError(fmt.Sprintf("upstream chat call failed: %v", err))
	}
	monitoring.Get().RecordUpstreamCall("completions", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			return nil, statusError(apierrors.ErrorTypeUpstreamAuth, "upstream chat", resp)
		}
		return nil, statusError(apierrors.ErrorTypeUpstreamTransient, "upstream chat", resp)
	}

	logger.Debug(ctx, "Upstream chat stream opened",
		"session_id", sessionID,
		"chat_mode", body.ChatMode,
		"model", body.Model)
	return resp, nil
}

// AcquireUploadCredential performs the STS-style credential exchange
// for one asset upload.
func (c *Client) AcquireUploadCredential(ctx context.Context, filename string, size int64, kind, token string) (*types.BackendCredentialResponse, error) {
	ctx = logger.WithComponent(ctx, "qwen_client")
	start := time.Now()

	body := types.BackendCredentialRequest{
		Filename: filename,
		Filesize: size,
		Filetype: kind,
	}

	req, err := c.newRequest(ctx, credentialPath, body, token)
	if err != nil {
		return nil, apierrors.NewUploadError(err.Error())
	}

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return nil, apierrors.NewUpstreamTransientError(fmt.Sprintf("credential call failed: %v", err))
	}
	defer resp.Body.Close()
	monitoring.Get().RecordUpstreamCall("upload_credential", time.Since(start))

	if resp.StatusCode == http.StatusForbidden {
		return nil, statusError(apierrors.ErrorTypeUpstreamAuth, "credential exchange", resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(apierrors.ErrorTypeUpstreamTransient, "credential exchange", resp)
	}

	var parsed types.BackendCredentialResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apierrors.NewUploadError(fmt.Sprintf("invalid credential response: %v", err))
	}
	if err := validateCredential(&parsed); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "Upload credential acquired",
		"bucket", parsed.BucketName,
		"object_path", parsed.FilePath,
		"file_id", parsed.FileID)
	return &parsed, nil
}

// validateCredential ensures the backend returned every field the
// upload needs.
func validateCredential(cred *types.BackendCredentialResponse) error {
	missing := ""
	switch {
	case cred.AccessKeyID == "":
		missing = "access_key_id"
	case cred.AccessKeySecret == "":
		missing = "access_key_secret"
	case cred.SecurityToken == "":
		missing = "security_token"
	case cred.BucketName == "":
		missing = "bucketname"
	case cred.Endpoint == "":
		missing = "endpoint"
	case cred.FilePath == "":
		missing = "file_path"
	case cred.FileURL == "":
		missing = "file_url"
	}
	if missing != "" {
		return apierrors.NewUploadError(fmt.Sprintf("credential response missing %s", missing))
	}
	return nil
}

// statusError reads a failed response and builds a typed error with
// the backend's status and a detail snippet.
func statusError(errorType apierrors.ErrorType, operation string, resp *http.Response) *apierrors.APIError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return apierrors.NewAPIErrorWithDetails(errorType,
		fmt.Sprintf("%s failed with status %d", operation, resp.StatusCode),
		string(snippet))
}
