package fixtures

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Post is one message received by a WebhookRecorder.
type Post struct {
	Channel  string
	Content  string
	FileName string
	FileSize int
}

// WebhookRecorder accepts multipart webhook posts on /<channel> and keeps them.
type WebhookRecorder struct {
	*httptest.Server

	mu    sync.Mutex
	posts []Post
}

// NewWebhookRecorder starts a recorder.
func NewWebhookRecorder() *WebhookRecorder {
	wr := &WebhookRecorder{}
	wr.Server = httptest.NewServer(http.HandlerFunc(wr.handle))
	return wr
}

func (wr *WebhookRecorder) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	post := Post{
		Channel: strings.TrimPrefix(r.URL.Path, "/"),
		Content: r.FormValue("content"),
	}
	if f, hdr, err := r.FormFile("file"); err == nil {
		data, _ := io.ReadAll(f)
		_ = f.Close()
		post.FileName = hdr.Filename
		post.FileSize = len(data)
	}

	wr.mu.Lock()
	wr.posts = append(wr.posts, post)
	wr.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// ChannelURL returns the webhook URL for channel.
func (wr *WebhookRecorder) ChannelURL(channel string) string {
	return wr.URL + "/" + channel
}

// Posts returns the messages received on channel.
func (wr *WebhookRecorder) Posts(channel string) []Post {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	var out []Post
	for _, p := range wr.posts {
		if p.Channel == channel {
			out = append(out, p)
		}
	}
	return out
}

// Contents returns the text of every message received on channel.
func (wr *WebhookRecorder) Contents(channel string) []string {
	posts := wr.Posts(channel)
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Content
	}
	return out
}
