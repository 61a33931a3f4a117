package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"stackit/internal/auth"
	"stackit/internal/domain"
	"stackit/internal/repository"
	"stackit/internal/repository/sqlite"
	"stackit/internal/service"
	"stackit/internal/storage"
)

type testServer struct {
	router *gin.Engine
	users  repository.UserRepository
	tokens *auth.TokenService
}

func newTestServer(t *testing.T, policy service.AcceptancePolicy) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	questions := sqlite.NewQuestionRepository(db)
	tags := sqlite.NewTagRepository(db)
	answers := sqlite.NewAnswerRepository(db)
	votes := sqlite.NewVoteRepository(db)
	notifications := sqlite.NewNotificationRepository(db)
	if err := sqlite.InitAll(context.Background(), users, questions, tags, answers, votes, notifications); err != nil {
		t.Fatalf("init: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	notifier := service.NewNotificationService(users, notifications, log)
	svc := Services{
		Users:         service.NewUserService(users, []string{"root"}),
		Questions:     service.NewQuestionService(questions, tags, answers),
		Answers:       service.NewAnswerService(questions, answers, notifier, policy, log),
		Votes:         service.NewVoteService(answers, votes),
		Notifications: notifier,
		Uploads: service.NewUploadService(newFakeStore(), service.UploadConfig{
			Bucket:    "media",
			KeyPrefix: "uploads",
			MaxBytes:  1 << 10,
		}),
	}
	tokens := auth.NewTokenService("test-secret", time.Hour)

	router := gin.New()
	NewHandler(svc, tokens, log, 1<<10).RegisterRoutes(router)
	return &testServer{router: router, users: users, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var resp TokenResponse
	decode(t, w, &resp)
	return resp.AccessToken
}

func (s *testServer) ask(t *testing.T, token string) QuestionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/questions", token, gin.H{
		"title":       "How do I close a channel?",
		"description": "Details inside",
		"tags":        []string{"go", "channels"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create question: status %d body %s", w.Code, w.Body.String())
	}
	var q QuestionResponse
	decode(t, w, &q)
	return q
}

func (s *testServer) answer(t *testing.T, token string, questionID int64, body string) AnswerResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/answers", token, gin.H{
		"question_id": questionID,
		"description": body,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create answer: status %d body %s", w.Code, w.Body.String())
	}
	var a AnswerResponse
	decode(t, w, &a)
	return a
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	token := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/api/register", "", gin.H{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login: expected 401, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body %s", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/api/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	var me UserResponse
	decode(t, w, &me)
	if me.Username != "alice" || me.Role != "user" {
		t.Errorf("unexpected me response %+v", me)
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})

	guest := &domain.User{Username: "visitor", Email: "visitor@example.com", PasswordHash: "x", Role: domain.RoleGuest}
	id, err := s.users.Create(context.Background(), guest)
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	guest.ID = id
	guestToken, _, err := s.tokens.Issue(guest)
	if err != nil {
		t.Fatalf("issue guest token: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		header string
		body   any
		want   int
	}{
		{"no token", http.MethodGet, "/api/notifications", "", nil, http.StatusUnauthorized},
		{"garbage token on protected route", http.MethodGet, "/api/notifications", "Bearer nope", nil, http.StatusUnauthorized},
		{"wrong scheme on protected route", http.MethodGet, "/api/me", "Basic abc", nil, http.StatusUnauthorized},
		{"garbage token on public route", http.MethodGet, "/api/questions", "Bearer nope", nil, http.StatusOK},
		{"wrong scheme on public route", http.MethodGet, "/api/tags", "Basic abc", nil, http.StatusOK},
		{"guest cannot read notifications", http.MethodGet, "/api/notifications", "Bearer " + guestToken, nil, http.StatusForbidden},
		{"guest cannot ask", http.MethodPost, "/api/questions", "Bearer " + guestToken, gin.H{"title": "t", "description": "d"}, http.StatusForbidden},
		{"missing question", http.MethodGet, "/api/questions/999", "", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/questions/abc", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reader io.Reader
			if tt.body != nil {
				b, _ := json.Marshal(tt.body)
				reader = bytes.NewReader(b)
			}
			req := httptest.NewRequest(tt.method, tt.path, reader)
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d body %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func expiredToken(t *testing.T, userID int64) string {
	t.Helper()
	claims := auth.Claims{
		Username: "alice",
		Role:     string(domain.RoleUser),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestStaleTokenOnPublicRoutes(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	owner := s.register(t, "alice")
	author := s.register(t, "bob")
	q := s.ask(t, owner)
	a := s.answer(t, author, q.ID, "answer")

	var me UserResponse
	decode(t, s.do(t, http.MethodGet, "/api/me", owner, nil), &me)
	stale := expiredToken(t, me.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"login", http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "password123"}},
		{"accept", http.MethodPost, fmt.Sprintf("/api/answers/%d/accept", a.ID), nil},
		{"list questions", http.MethodGet, "/api/questions", nil},
		{"get question", http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), nil},
		{"list tags", http.MethodGet, "/api/tags", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, stale, tt.body)
			if w.Code != http.StatusOK {
				t.Errorf("expected 200, got %d body %s", w.Code, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/notifications", stale, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("protected route: expected 401, got %d", w.Code)
	}
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	if body.Error != "invalid or expired token" {
		t.Errorf("expected a fixed error message, got %q", body.Error)
	}
}

func TestAnswerWithRepeatedMention(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	a := s.register(t, "A")
	b := s.register(t, "B")

	q := s.ask(t, a)
	s.answer(t, b, q.ID, "great question @A @A")

	w := s.do(t, http.MethodGet, "/api/notifications", a, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list notifications: %d", w.Code)
	}
	var inbox []NotificationResponse
	decode(t, w, &inbox)
	kinds := map[string]int{}
	for _, n := range inbox {
		kinds[n.Kind]++
		if n.Read {
			t.Errorf("new notification should be unread: %+v", n)
		}
	}
	if len(inbox) != 2 || kinds["answered"] != 1 || kinds["mentioned"] != 1 {
		t.Errorf("expected one answered and one mentioned notification, got %+v", inbox)
	}

	w = s.do(t, http.MethodGet, "/api/notifications", b, nil)
	decode(t, w, &inbox)
	if len(inbox) != 0 {
		t.Errorf("author should not be notified, got %+v", inbox)
	}
}

func TestMarkAllRead(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	owner := s.register(t, "owner")
	author := s.register(t, "author")
	q := s.ask(t, owner)
	s.answer(t, author, q.ID, "first")
	s.answer(t, author, q.ID, "second, cc @owner")

	var count struct {
		Unread int `json:"unread"`
	}
	w := s.do(t, http.MethodGet, "/api/notifications/unread-count", owner, nil)
	decode(t, w, &count)
	if count.Unread != 3 {
		t.Fatalf("expected 3 unread, got %d", count.Unread)
	}

	w = s.do(t, http.MethodPost, "/api/notifications/mark-read", owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read: %d", w.Code)
	}
	var marked struct {
		Updated int64 `json:"updated"`
	}
	decode(t, w, &marked)
	if marked.Updated != 3 {
		t.Errorf("expected 3 rows updated, got %d", marked.Updated)
	}

	w = s.do(t, http.MethodGet, "/api/notifications/unread-count", owner, nil)
	decode(t, w, &count)
	if count.Unread != 0 {
		t.Errorf("expected 0 unread after mark-read, got %d", count.Unread)
	}

	w = s.do(t, http.MethodGet, "/api/notifications", owner, nil)
	var inbox []NotificationResponse
	decode(t, w, &inbox)
	if len(inbox) != 3 {
		t.Errorf("read notifications must still be listed, got %d", len(inbox))
	}
}

func TestVotes(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	owner := s.register(t, "owner")
	voter := s.register(t, "voter")
	q := s.ask(t, owner)
	a := s.answer(t, voter, q.ID, "use close()")
	path := fmt.Sprintf("/api/answers/%d/votes", a.ID)

	w := s.do(t, http.MethodPost, path+"?vote_type=up", voter, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vote: %d body %s", w.Code, w.Body.String())
	}
	var vote VoteResponse
	decode(t, w, &vote)
	if !vote.Created || vote.VoteType != "up" {
		t.Errorf("unexpected first vote response %+v", vote)
	}

	w = s.do(t, http.MethodPost, path, voter, gin.H{"vote_type": "down"})
	decode(t, w, &vote)
	if vote.Created || vote.VoteType != "down" {
		t.Errorf("expected second vote to change the first, got %+v", vote)
	}

	s.do(t, http.MethodPost, path+"?vote_type=up", owner, nil)

	w = s.do(t, http.MethodGet, path, "", nil)
	var tally TallyResponse
	decode(t, w, &tally)
	if tally.Up != 1 || tally.Down != 1 || tally.Score != 0 || tally.MyVote != "" {
		t.Errorf("unexpected anonymous tally %+v", tally)
	}

	w = s.do(t, http.MethodGet, path, voter, nil)
	decode(t, w, &tally)
	if tally.MyVote != "down" {
		t.Errorf("expected the voter's own vote in the tally, got %+v", tally)
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"invalid direction", path + "?vote_type=sideways", http.StatusBadRequest},
		{"missing answer", "/api/answers/999/votes?vote_type=up", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, voter, nil)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestConcurrentVotesKeepOneRow(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	owner := s.register(t, "owner")
	voter := s.register(t, "voter")
	q := s.ask(t, owner)
	a := s.answer(t, owner, q.ID, "answer")
	path := fmt.Sprintf("/api/answers/%d/votes", a.ID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			direction := "up"
			if i%2 == 1 {
				direction = "down"
			}
			req := httptest.NewRequest(http.MethodPost, path+"?vote_type="+direction, nil)
			req.Header.Set("Authorization", "Bearer "+voter)
			s.router.ServeHTTP(httptest.NewRecorder(), req)
		}(i)
	}
	wg.Wait()

	w := s.do(t, http.MethodGet, path, "", nil)
	var tally TallyResponse
	decode(t, w, &tally)
	if tally.Up+tally.Down != 1 {
		t.Errorf("expected exactly one vote row, got %+v", tally)
	}
}

func TestAcceptAnswer(t *testing.T) {
	t.Run("permissive", func(t *testing.T) {
		s := newTestServer(t, service.AcceptancePolicy{})
		owner := s.register(t, "owner")
		author := s.register(t, "author")
		q := s.ask(t, owner)
		first := s.answer(t, author, q.ID, "first")
		second := s.answer(t, author, q.ID, "second")

		for _, id := range []int64{first.ID, second.ID} {
			w := s.do(t, http.MethodPost, fmt.Sprintf("/api/answers/%d/accept", id), "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("accept %d: %d", id, w.Code)
			}
		}

		w := s.do(t, http.MethodGet, fmt.Sprintf("/api/questions/%d", q.ID), "", nil)
		var detail QuestionResponse
		decode(t, w, &detail)
		accepted := 0
		for _, a := range detail.Answers {
			if a.Accepted {
				accepted++
			}
		}
		if accepted != 2 {
			t.Errorf("expected both answers accepted, got %d", accepted)
		}

		w = s.do(t, http.MethodPost, "/api/answers/999/accept", "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("missing answer: expected 404, got %d", w.Code)
		}
	})

	t.Run("owner only", func(t *testing.T) {
		s := newTestServer(t, service.AcceptancePolicy{OwnerOnly: true, Exclusive: true})
		owner := s.register(t, "owner")
		author := s.register(t, "author")
		q := s.ask(t, owner)
		a := s.answer(t, author, q.ID, "answer")
		path := fmt.Sprintf("/api/answers/%d/accept", a.ID)

		if w := s.do(t, http.MethodPost, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("anonymous: expected 401, got %d", w.Code)
		}
		if w := s.do(t, http.MethodPost, path, author, nil); w.Code != http.StatusForbidden {
			t.Errorf("non-owner: expected 403, got %d", w.Code)
		}
		if w := s.do(t, http.MethodPost, path, owner, nil); w.Code != http.StatusOK {
			t.Errorf("owner: expected 200, got %d", w.Code)
		}
	})
}

func TestQuestionListingAndDetail(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	owner := s.register(t, "owner")
	for i := 0; i < 3; i++ {
		s.ask(t, owner)
	}

	w := s.do(t, http.MethodGet, "/api/questions?page=2&limit=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var page QuestionListResponse
	decode(t, w, &page)
	if page.Total != 3 || page.Page != 2 || page.Limit != 2 || len(page.Questions) != 1 {
		t.Errorf("unexpected page %+v", page)
	}

	q := page.Questions[0]
	if q.Author == nil || q.Author.Username != "owner" || q.Author.Email != "" {
		t.Errorf("author should be shown without email, got %+v", q.Author)
	}
	if len(q.Tags) != 2 {
		t.Errorf("expected two tags, got %v", q.Tags)
	}
}

func TestTagsRequireAdmin(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	user := s.register(t, "alice")
	admin := s.register(t, "root")

	if w := s.do(t, http.MethodPost, "/api/tags", user, gin.H{"name": "rust"}); w.Code != http.StatusForbidden {
		t.Errorf("user: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/tags?tag_name=rust", admin, nil); w.Code != http.StatusCreated {
		t.Fatalf("admin: expected 201, got %d body %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/tags", admin, gin.H{"name": "rust"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/tags", "", nil)
	var tags []string
	decode(t, w, &tags)
	if len(tags) != 1 || tags[0] != "rust" {
		t.Errorf("unexpected tags %v", tags)
	}
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploads(t *testing.T) {
	s := newTestServer(t, service.AcceptancePolicy{})
	token := s.register(t, "alice")

	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int
		want        int
	}{
		{"png", "cat.png", "image/png", 16, http.StatusCreated},
		{"not an image", "notes.txt", "text/plain", 16, http.StatusBadRequest},
		{"too large", "big.png", "image/png", 4 << 10, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.filename, tt.contentType, bytes.Repeat([]byte("x"), tt.size))
			req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d body %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w := s.do(t, http.MethodGet, "/api/uploads", token, nil)
	var uploads []UploadResponse
	decode(t, w, &uploads)
	if len(uploads) != 1 || !strings.HasSuffix(uploads[0].Key, ".png") {
		t.Errorf("expected one stored png, got %+v", uploads)
	}
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]int64{}}
}

func (f *fakeStore) PutObject(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[opts.Key] = n
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (f *fakeStore) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.ObjectInfo
	for k, n := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: n})
		}
	}
	return out, nil
}

func (f *fakeStore) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example.com/" + key, nil
}
