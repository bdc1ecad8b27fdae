package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/cache"
	"github.com/circlesocial/backend/internal/friends"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/posts"
	"github.com/circlesocial/backend/internal/repositories"
	"github.com/circlesocial/backend/internal/users"
)

type memoryPictures struct {
	saved map[string][]byte
}

func (m *memoryPictures) Save(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.saved[name] = data
	return name, nil
}

func (m *memoryPictures) Delete(_ context.Context, path string) error {
	delete(m.saved, path)
	return nil
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	tokens   *auth.TokenManager
	pictures *memoryPictures
	clock    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	userRepo := repositories.NewInMemoryUserRepository()
	postRepo := repositories.NewInMemoryPostRepository()

	ts := &testServer{t: t, pictures: &memoryPictures{saved: map[string][]byte{}}, clock: time.Now().UTC()}

	tokens, err := auth.NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), "circle", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	tokens.NowFunc = func() time.Time { return ts.clock }
	ts.tokens = tokens

	authService := auth.NewService(userRepo, tokens, nil)
	authService.Cost = bcrypt.MinCost

	postService := posts.NewService(postRepo, userRepo, nil)
	tick := ts.clock
	postService.NowFunc = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Auth:      authService,
		Tokens:    tokens,
		Directory: users.NewService(userRepo, cache.NewJSON[[]models.User](cache.NewMemoryBackend(), time.Minute)),
		Friends:   friends.NewService(userRepo, nil),
		Posts:     postService,
		Pictures:  ts.pictures,
	})
	ts.handler = mux
	return ts
}

func (ts *testServer) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doJSON(method, path, token string, payload any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			ts.t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return ts.do(method, path, token, body, "application/json")
}

func (ts *testServer) register(username, password string) models.User {
	ts.t.Helper()
	rec := ts.doJSON(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": username, "password": password})
	if rec.Code != http.StatusCreated {
		ts.t.Fatalf("register %s: expected 201 got %d: %s", username, rec.Code, rec.Body.String())
	}
	var user models.User
	decode(ts.t, rec, &user)
	return user
}

func (ts *testServer) login(identifier, password string) loginResponse {
	ts.t.Helper()
	rec := ts.doJSON(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"identifier": identifier, "password": password})
	if rec.Code != http.StatusOK {
		ts.t.Fatalf("login %s: expected 200 got %d: %s", identifier, rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decode(ts.t, rec, &resp)
	return resp
}

// session registers and logs in a user, returning it and its token.
func (ts *testServer) session(username string) (models.User, string) {
	ts.t.Helper()
	user := ts.register(username, "pw-"+username)
	return user, ts.login(username, "pw-"+username).Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d got %d: %s", status, rec.Code, rec.Body.String())
	}
	var body messageResponse
	decode(t, rec, &body)
	if body.Message == "" {
		t.Fatalf("expected a message body")
	}
	return body.Message
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		part, err := writer.CreateFormFile(pictureField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}
