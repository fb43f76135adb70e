package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendMessageReturnsMessageID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken123/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req telegramSendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ChatID != 10 || req.Text != "hello" || req.ReplyToMessageID != 5 {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":77}}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	id, err := api.sendMessage(context.Background(), 10, "hello", 5)
	if err != nil {
		t.Fatalf("sendMessage() error = %v", err)
	}
	if id != 77 {
		t.Fatalf("message id = %d, want 77", id)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	_, err := api.sendMessage(context.Background(), 10, "hello", 0)
	var reqErr *telegramRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("sendMessage() error = %v, want *telegramRequestError", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest || reqErr.ErrorCode != 400 {
		t.Fatalf("error = %+v", reqErr)
	}
}

func TestEditMessageText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken123/editMessageText" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req telegramEditMessageTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ChatID != 10 || req.MessageID != 77 || req.Text != "partial" {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	if err := api.editMessageText(context.Background(), 10, 77, "partial"); err != nil {
		t.Fatalf("editMessageText() error = %v", err)
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":3,"message":{"message_id":1,"chat":{"id":10},"text":"a"}},
			{"update_id":4,"message":{"message_id":2,"chat":{"id":10},"text":"b"}}
		]}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	updates, next, err := api.getUpdates(context.Background(), 0, time.Second)
	if err != nil {
		t.Fatalf("getUpdates() error = %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	if next != 5 {
		t.Fatalf("next offset = %d, want 5", next)
	}
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":99,"is_bot":true,"username":"gptbot"}}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	me, err := api.getMe(context.Background())
	if err != nil {
		t.Fatalf("getMe() error = %v", err)
	}
	if me.ID != 99 || me.Username != "gptbot" {
		t.Fatalf("me = %+v", me)
	}
}

func TestSetMyCommands(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req telegramSetMyCommandsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Commands) != len(Commands) {
			t.Errorf("commands = %d, want %d", len(req.Commands), len(Commands))
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	api := newTelegramAPI(srv.Client(), srv.URL, "token123")
	if err := api.setMyCommands(context.Background(), Commands); err != nil {
		t.Fatalf("setMyCommands() error = %v", err)
	}
}
