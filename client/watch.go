package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tasktrack/internal/realtime"
)

// Change — событие из /api/v1/realtime.
type Change struct {
	Name string // change | due_soon
	realtime.Event
}

// Watch читает SSE-поток до отмены ctx или обрыва соединения и вызывает
// fn на каждое событие. Комментарии (heartbeat) пропускаются.
func (a *Auth) Watch(ctx context.Context, fn func(Change)) error {
	token := a.AccessToken()
	if token == "" {
		return ErrSignedOut
	}
	req, err := a.c.newRequest(ctx, http.MethodGet, "/api/v1/realtime", token, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	// поток бессрочный: общий таймаут клиента здесь не годится
	hc := *a.c.http
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return &Error{Message: "network error: " + err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		perr := problemError(resp)
		if perr.SessionExpired() {
			a.drop()
		}
		return perr
	}

	sc := bufio.NewScanner(resp.Body)
	var name, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data != "" {
				ch := Change{Name: name}
				if err := json.Unmarshal([]byte(data), &ch.Event); err == nil {
					fn(ch)
				}
			}
			name, data = "", ""
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
