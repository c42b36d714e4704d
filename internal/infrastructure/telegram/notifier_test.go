package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotifyPostsMessage(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotPreview string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		gotPreview = r.PostForm.Get("disable_web_page_preview")
	}))
	defer server.Close()

	n := NewNotifier("token123", "chat42")
	n.apiBase = server.URL

	if err := n.Notify(context.Background(), "price dropped"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	if gotPath != "/bottoken123/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "chat42" || gotText != "price dropped" || gotPreview != "true" {
		t.Fatalf("unexpected form: chat=%q text=%q preview=%q", gotChat, gotText, gotPreview)
	}
}

func TestNotifyMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.Notify(context.Background(), "msg"); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestNotifyNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier("token", "chat")
	n.apiBase = server.URL

	if err := n.Notify(context.Background(), "msg"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
