package handlers

import (
	"net/http"
	"net/netip"
	"strings"
	"testing"

	"github.com/circlesocial/backend/internal/models"
)

func TestPostLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ann, annToken := ts.session("ann")
	bo, boToken := ts.session("bo")

	body, contentType := multipartBody(t, map[string]string{"description": "sunset"}, "sunset.jpg", []byte("jpg"))
	rec := ts.do(http.MethodPost, "/api/v1/post", annToken, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var first models.Post
	decode(t, rec, &first)
	if first.UserID != ann.ID || first.PicturePath == "" || len(first.Likes) != 0 {
		t.Fatalf("unexpected post %+v", first)
	}

	rec = ts.doJSON(http.MethodPost, "/api/v1/post", boToken, map[string]string{"description": "hello", "userId": ann.ID})
	var second models.Post
	decode(t, rec, &second)
	if second.UserID != bo.ID {
		t.Fatalf("author must be the caller, got %s", second.UserID)
	}

	rec = ts.do(http.MethodGet, "/api/v1/post", annToken, nil, "")
	var feed []models.Post
	decode(t, rec, &feed)
	if len(feed) != 2 || feed[0].ID != second.ID || feed[1].ID != first.ID {
		t.Fatalf("expected newest first got %+v", feed)
	}

	rec = ts.do(http.MethodGet, "/api/v1/post/"+ann.ID+"/posts", boToken, nil, "")
	var annPosts []models.Post
	decode(t, rec, &annPosts)
	if len(annPosts) != 1 || annPosts[0].ID != first.ID {
		t.Fatalf("expected ann's post only got %+v", annPosts)
	}

	var liked models.Post
	decode(t, ts.do(http.MethodPatch, "/api/v1/post/"+first.ID+"/like", boToken, nil, ""), &liked)
	if !liked.LikedBy(bo.ID) || len(liked.Likes) != 1 {
		t.Fatalf("expected one like got %v", liked.Likes)
	}
	decode(t, ts.do(http.MethodPatch, "/api/v1/post/"+first.ID+"/like", boToken, nil, ""), &liked)
	if len(liked.Likes) != 0 {
		t.Fatalf("expected like removed got %v", liked.Likes)
	}
}

func TestPostFailures(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.session("ann")

	expectMessage(t, ts.doJSON(http.MethodPost, "/api/v1/post", token, map[string]string{}), http.StatusBadRequest)
	expectMessage(t, ts.do(http.MethodPatch, "/api/v1/post/missing/like", token, nil, ""), http.StatusNotFound)
	expectMessage(t, ts.do(http.MethodGet, "/api/v1/post/ghost/posts", token, nil, ""), http.StatusNotFound)
	expectMessage(t, ts.do(http.MethodGet, "/api/v1/post", "", nil, ""), http.StatusUnauthorized)

	body, contentType := multipartBody(t, map[string]string{"description": strings.Repeat("x", 2001)}, "big.png", []byte("png"))
	expectMessage(t, ts.do(http.MethodPost, "/api/v1/post", token, body, contentType), http.StatusBadRequest)
	if len(ts.pictures.saved) != 0 {
		t.Fatalf("expected rejected post to leave no picture got %d", len(ts.pictures.saved))
	}
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}

	rec = ts.do(http.MethodPost, "/healthz", "", nil, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	cases := []struct {
		name      string
		remote    string
		forwarded string
		trusted   []netip.Prefix
		want      string
	}{
		{name: "direct", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "forwarded from untrusted peer", remote: "198.51.100.4:5555", forwarded: "203.0.113.9", trusted: trusted, want: "198.51.100.4"},
		{name: "forwarded without trusted proxies", remote: "10.0.0.1:5555", forwarded: "203.0.113.9", want: "10.0.0.1"},
		{name: "forwarded from trusted proxy", remote: "10.0.0.1:5555", forwarded: "203.0.113.9", trusted: trusted, want: "203.0.113.9"},
		{name: "spoofed leftmost hop", remote: "10.0.0.1:5555", forwarded: "1.2.3.4, 203.0.113.9, 10.0.0.2", trusted: trusted, want: "203.0.113.9"},
		{name: "only trusted hops", remote: "10.0.0.1:5555", forwarded: "10.0.0.3", trusted: trusted, want: "10.0.0.3"},
		{name: "garbage remote", remote: "garbage", want: "garbage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}
