// Package client реализует Go-клиент API: сессия с фоновым обновлением токена,
// коллекции задач и записей расхода с локальным кэшем и refetch по realtime.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tasktrack/internal/models"
)

// Error — ошибка для показа пользователю.
// Status 0 означает ошибку проверки на клиенте или сети.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// SessionExpired — сервер сообщил, что access-токен истёк.
func (e *Error) SessionExpired() bool { return e.Code == models.CodeSessionExpired }

func invalid(field, msg string) *Error {
	return &Error{Message: field + ": " + msg}
}

// Client — транспорт к серверу. Состояния не держит.
type Client struct {
	base string
	http *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do выполняет запрос и декодирует ответ в out (если out != nil).
// Ответ >= 400 превращается в *Error из problem+json.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) (int, error) {
	req, err := c.newRequest(ctx, method, path, token, in)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &Error{Message: "network error: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, problemError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, &Error{Status: resp.StatusCode, Message: "malformed server response"}
		}
	}
	return resp.StatusCode, nil
}

func problemError(resp *http.Response) *Error {
	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Extra  struct {
			Code string `json:"code"`
		} `json:"extra"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&p)
	msg := p.Detail
	if msg == "" {
		msg = p.Title
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Code: p.Extra.Code, Message: msg}
}
