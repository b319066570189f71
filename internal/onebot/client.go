// Package onebot calls OneBot 11 HTTP actions: sending group replies and
// looking up the bot's own account and member roles.
package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"replybot/internal/constants"
	"replybot/internal/logger"
	"replybot/pkg/circuitbreaker"
	apperrors "replybot/pkg/errors"
	"replybot/pkg/metrics"
)

const (
	actionSendGroupMsg       = "send_group_msg"
	actionGetLoginInfo       = "get_login_info"
	actionGetGroupMemberInfo = "get_group_member_info"
)

type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
	breaker     *circuitbreaker.Wrapper
	logger      logger.Logger
}

// NewClient builds a client for the HTTP API at baseURL. breaker may be
// nil.
func NewClient(baseURL, accessToken string, breaker *circuitbreaker.Wrapper, log logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		breaker: breaker,
		logger:  log,
	}
}

type response struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Wording string          `json:"wording"`
}

type segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

// numericID sends ids as JSON numbers when they look like QQ numbers,
// which is what most OneBot implementations expect.
func numericID(id string) interface{} {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func (c *Client) call(ctx context.Context, action string, params interface{}, out interface{}) error {
	do := func() (interface{}, error) {
		return nil, c.post(ctx, action, params, out)
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.ExecuteWithContext(ctx, do)
		if circuitbreaker.IsRejection(err) {
			return apperrors.ErrGatewayUnavailable.WithCause(err)
		}
	} else {
		_, err = do()
	}
	return err
}

func (c *Client) post(ctx context.Context, action string, params interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s params: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return fmt.Errorf("%s returned status: %d", action, resp.StatusCode)
	}

	var result response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if result.RetCode != 0 || (result.Status != "" && result.Status != "ok" && result.Status != "async") {
		msg := result.Wording
		if msg == "" {
			msg = result.Message
		}
		return fmt.Errorf("%s failed: retcode %d: %s", action, result.RetCode, msg)
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", action, err)
		}
	}
	return nil
}

// SendReply posts text to the group, quoting replyTo when it is set. It
// reports false on any failure; the error is logged.
func (c *Client) SendReply(ctx context.Context, conversationID, text, replyTo string) bool {
	message := make([]segment, 0, 2)
	if replyTo != "" {
		message = append(message, segment{Type: "reply", Data: map[string]string{"id": replyTo}})
	}
	message = append(message, segment{Type: "text", Data: map[string]string{"text": text}})

	params := map[string]interface{}{
		"group_id": numericID(conversationID),
		"message":  message,
	}

	start := time.Now()
	err := c.call(ctx, actionSendGroupMsg, params, nil)
	metrics.ObserveReplySendDuration(time.Since(start))
	if err != nil {
		metrics.ReplySendTotal.WithLabelValues("failure").Inc()
		c.logger.WarnwCtx(ctx, "Failed to send reply",
			"conversation_id", conversationID,
			"error", err,
		)
		return false
	}

	metrics.ReplySendTotal.WithLabelValues("success").Inc()
	return true
}

// SelfID returns the bot's own account id.
func (c *Client) SelfID(ctx context.Context) (string, error) {
	var info struct {
		UserID   json.Number `json:"user_id"`
		Nickname string      `json:"nickname"`
	}
	if err := c.call(ctx, actionGetLoginInfo, map[string]interface{}{}, &info); err != nil {
		return "", err
	}
	if info.UserID == "" {
		return "", fmt.Errorf("%s returned no user_id", actionGetLoginInfo)
	}
	return info.UserID.String(), nil
}

// GetRole returns "owner", "admin" or "member".
func (c *Client) GetRole(ctx context.Context, conversationID, userID string) (string, error) {
	params := map[string]interface{}{
		"group_id": numericID(conversationID),
		"user_id":  numericID(userID),
		"no_cache": false,
	}

	var member struct {
		Role string `json:"role"`
	}
	if err := c.call(ctx, actionGetGroupMemberInfo, params, &member); err != nil {
		return "", err
	}
	if member.Role == "" {
		return "", fmt.Errorf("%s returned no role", actionGetGroupMemberInfo)
	}
	return member.Role, nil
}
