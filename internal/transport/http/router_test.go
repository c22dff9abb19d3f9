package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
	"hello-world-api/internal/infra/ipapi"
	"hello-world-api/internal/infra/memory"
	"hello-world-api/internal/metrics"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type fakeLocator struct {
	err error
}

func (f fakeLocator) Locate(context.Context, string) (ipapi.Location, error) {
	if f.err != nil {
		return ipapi.Location{}, f.err
	}
	return ipapi.Location{Label: "London, England, United Kingdom", CountryCode: "GB"}, nil
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	store  *app.Store
	board  *app.Leaderboard
	notify *memory.Notifier
}

func questions() []app.QuestionFixture {
	out := make([]app.QuestionFixture, 3)
	for i := range out {
		out[i] = app.QuestionFixture{
			Kind:               domain.QuestionSingle,
			Question:           "pick b",
			Answers:            []string{"a", "b"},
			CorrectAnswerIndex: domain.AnswerIndex{"0": 1},
		}
	}
	return out
}

type options struct {
	debug   bool
	locator Locator
	limiter LoginLimiter
}

func newTestAPI(t *testing.T, opts options) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now()

	_, err := app.NewSeeder(store, nil).Seed(ctx, app.Fixtures{
		Courses: []app.CourseFixture{{
			Name: "python",
			Categories: []app.CategoryFixture{{
				Name: "basics",
				Topics: []app.TopicFixture{{
					Name:     "variables",
					Resource: &app.ResourceFixture{Name: "intro", Content: map[string]any{"body": "x = 1"}},
					Quiz:     &app.QuizFixture{Name: "variables-quiz", Questions: questions()},
				}},
			}},
		}},
		DailyQuizzes: []app.DailyQuizFixture{{
			QuizFixture: app.QuizFixture{Name: "daily", Questions: questions()},
			OpensAt:     now.Add(-time.Hour),
			ClosesAt:    now.Add(time.Hour),
		}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	sessions, err := app.NewSessionManager([]byte(strings.Repeat("k", 32)), store.Sessions, store.Users)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	hasher := app.NewHasher(app.HasherParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	notifier := memory.NewNotifier()
	quizzes := app.NewQuizService(store, notifier, nil, nil)
	board := app.NewLeaderboard(store.Users, app.DefaultLeaderboardSize, notifier, nil)

	if opts.locator == nil {
		opts.locator = fakeLocator{}
	}
	router := NewRouter(Deps{
		Accounts:     app.NewAccountService(store, hasher, sessions, nil),
		Sessions:     sessions,
		Courses:      app.NewCourseService(store, quizzes.Gate(), time.Now),
		Quizzes:      quizzes,
		Inbox:        app.NewInboxService(store, time.Now),
		Leaderboard:  board,
		Locator:      opts.locator,
		LoginLimiter: opts.limiter,
		Metrics:      metrics.New(),
		Log:          zap.NewNop(),
		Debug:        opts.debug,
	})
	return &testAPI{t: t, router: router, store: store, board: board, notify: notifier}
}

type envelope struct {
	Code  int `json:"code"`
	Error struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
	Token   string          `json:"token"`
	Message string          `json:"message"`
	User    json.RawMessage `json:"user"`
	Answer  json.RawMessage `json:"answer"`
	Results map[string]struct {
		WrongAnswers []int `json:"wrong_answers"`
	} `json:"results"`
	Leaderboard []struct {
		Username string `json:"username"`
		Points   int    `json:"points"`
	} `json:"leaderboard"`
	Event  inboxItem   `json:"event"`
	Events []inboxItem `json:"events"`

	Notifications []inboxItem `json:"notifications"`
}

type inboxItem struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", chromeUA)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	if env.Code != w.Code {
		a.t.Fatalf("%s %s: envelope code %d differs from status %d", method, path, env.Code, w.Code)
	}
	return w.Code, env
}

func (a *testAPI) signUp(username string) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/sign-up", "", map[string]string{"username": username, "password": "hunter22"})
	if status != http.StatusCreated || env.Token == "" {
		a.t.Fatalf("sign up %s: %d %+v", username, status, env.Error)
	}
	return env.Token
}

func TestSignUpLogInLogOut(t *testing.T) {
	api := newTestAPI(t, options{})
	token := api.signUp("alice")

	if status, env := api.do(http.MethodPost, "/api/sign-up", "", map[string]string{"username": "alice", "password": "x"}); status != http.StatusBadRequest || env.Error.Message != "Username Already Exists" {
		t.Fatalf("expected duplicate username rejected, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPost, "/api/log-in", "", map[string]string{"username": "alice", "password": "wrong"}); status != http.StatusUnauthorized || env.Error.Message != "Invalid Credentials" {
		t.Fatalf("expected invalid credentials, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPost, "/api/log-in", "", map[string]string{"username": "alice", "password": "hunter22"}); status != http.StatusOK || env.Token == "" || env.Token == token {
		t.Fatalf("expected fresh token on log in, got %d %+v", status, env)
	}

	status, env := api.do(http.MethodGet, "/api/@me", token, nil)
	if status != http.StatusOK || strings.Contains(string(env.User), "password") {
		t.Fatalf("expected profile without password, got %d %s", status, env.User)
	}

	if status, env := api.do(http.MethodPost, "/api/log-out", "", map[string]string{"token": token}); status != http.StatusOK || env.Message != "Successfully Logged Out!" {
		t.Fatalf("log out: %d %+v", status, env)
	}
	if status, env := api.do(http.MethodGet, "/api/@me", token, nil); status != http.StatusUnauthorized || env.Error.Message != "Invalid Token" {
		t.Fatalf("expected revoked token rejected, got %d %+v", status, env.Error)
	}
}

func TestAuthHeaderErrors(t *testing.T) {
	api := newTestAPI(t, options{})
	cases := []struct {
		header  string
		message string
	}{
		{"", "Un-Authorised"},
		{"Basic abc", "Invalid Token Scheme"},
		{"Bearer not-a-jwt", "Invalid Token"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/@me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)

		var env envelope
		_ = json.Unmarshal(w.Body.Bytes(), &env)
		if w.Code != http.StatusUnauthorized || env.Error.Status != "Un-Authorised" || env.Error.Message != tc.message {
			t.Fatalf("header %q: expected 401 %q, got %d %+v", tc.header, tc.message, w.Code, env.Error)
		}
	}
}

func TestSignUpRequiresClientInfo(t *testing.T) {
	api := newTestAPI(t, options{locator: fakeLocator{err: errors.New("private range")}})

	status, env := api.do(http.MethodPost, "/api/sign-up", "", map[string]string{"username": "bob", "password": "pw"})
	if status != http.StatusBadRequest || env.Error.Message != "Invalid Request" {
		t.Fatalf("expected lookup failure rejected in release mode, got %d %+v", status, env.Error)
	}

	debug := newTestAPI(t, options{debug: true, locator: fakeLocator{err: errors.New("private range")}})
	debug.signUp("bob")
	user, err := debug.store.Users.First(context.Background(), app.Eq("username", "bob"))
	if err != nil || user.Country != "GB" {
		t.Fatalf("expected default country in debug mode, got %+v %v", user, err)
	}
	session, err := debug.store.Sessions.First(context.Background(), app.Eq("user_id", user.ID))
	if err != nil || session.Location != "Unknown" || !strings.HasPrefix(session.Device, "Chrome on ") {
		t.Fatalf("unexpected session client info %+v %v", session, err)
	}

	located := newTestAPI(t, options{debug: true})
	located.signUp("erin")
	user, _ = located.store.Users.First(context.Background(), app.Eq("username", "erin"))
	session, err = located.store.Sessions.First(context.Background(), app.Eq("user_id", user.ID))
	if err != nil || session.Location != "London, England, United Kingdom" {
		t.Fatalf("expected resolved location kept in debug mode, got %+v %v", session, err)
	}
}

func TestValidationMessages(t *testing.T) {
	api := newTestAPI(t, options{})
	token := api.signUp("carol")

	if status, env := api.do(http.MethodPost, "/api/sign-up", "", map[string]string{"username": "dave"}); status != http.StatusBadRequest || env.Error.Message != "'password' is Required" {
		t.Fatalf("expected missing password, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPut, "/api/@me/preferences", token, map[string]bool{"daily_quiz_reminder": true}); status != http.StatusBadRequest || env.Error.Message != "'weekly_newsletter' is Required" {
		t.Fatalf("expected missing preference flag, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPut, "/api/@me", token, map[string]string{"location": "Mars"}); status != http.StatusBadRequest || env.Error.Message != "Invalid Payload" {
		t.Fatalf("expected unknown key rejected, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPost, "/api/daily-quiz/questions/1/answer", token, map[string]string{"chosen_answers": "b"}); status != http.StatusBadRequest || env.Error.Message != "'chosen_answers' is Invalid" {
		t.Fatalf("expected type error, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodGet, "/api/nowhere", "", nil); status != http.StatusNotFound || env.Error.Message != "The Resource you Requested was Not Found" {
		t.Fatalf("expected default 404 message, got %d %+v", status, env.Error)
	}
}

func TestTopicQuizFlow(t *testing.T) {
	api := newTestAPI(t, options{})
	token := api.signUp("erin")
	quiz := "/api/courses/python/topics/variables/quiz"

	if status, env := api.do(http.MethodGet, quiz+"/questions", token, nil); status != http.StatusForbidden || env.Error.Message != "You are Not Enrolled in this Course" {
		t.Fatalf("expected enrolment required, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPost, "/api/courses/python/join", token, nil); status != http.StatusCreated || env.Message != "Successfully Joined Course: python" {
		t.Fatalf("join: %d %+v", status, env)
	}

	topic, err := api.store.Quizzes.First(context.Background(), app.Eq("kind", domain.QuizTopic))
	if err != nil {
		t.Fatalf("load topic quiz: %v", err)
	}
	questions, _ := api.store.QuestionReader.QuizQuestions(context.Background(), topic.ID)
	first := questions[0]
	path := quiz + "/questions/" + itoa(first.ID) + "/answer"
	if status, env := api.do(http.MethodPost, path, token, map[string][]int{"chosen_answers": {1}}); status != http.StatusOK || len(env.Answer) == 0 || string(env.Answer) == "null" {
		t.Fatalf("record answer: %d %s", status, env.Answer)
	}
	if status, env := api.do(http.MethodPost, path, token, map[string][]int{"chosen_answers": {}}); status != http.StatusOK || string(env.Answer) != "null" {
		t.Fatalf("expected empty answer to be a no-op, got %d %s", status, env.Answer)
	}

	status, env := api.do(http.MethodPost, quiz+"/submit", token, nil)
	if status != http.StatusOK || len(env.Results) != 3 || len(env.Results["1"].WrongAnswers) != 0 || len(env.Results["2"].WrongAnswers) != 1 {
		t.Fatalf("submit: %d %+v", status, env.Results)
	}
	if status, env := api.do(http.MethodPost, quiz+"/submit", token, nil); status != http.StatusForbidden || env.Error.Message != "You have Already Attempted this Quiz" {
		t.Fatalf("expected second submit rejected, got %d %+v", status, env.Error)
	}
	if status, _ := api.do(http.MethodGet, quiz+"/results", token, nil); status != http.StatusOK {
		t.Fatalf("results after submit: %d", status)
	}
}

func TestDailyQuizAwardsLeaderboardPoints(t *testing.T) {
	api := newTestAPI(t, options{})
	token := api.signUp("frank")

	if status, env := api.do(http.MethodGet, "/api/daily-quiz/results", token, nil); status != http.StatusForbidden || env.Error.Message != "You have Not Attempted the Daily Quiz" {
		t.Fatalf("expected results blocked before attempt, got %d %+v", status, env.Error)
	}

	daily, err := api.store.Quizzes.First(context.Background(), app.Eq("kind", domain.QuizDaily))
	if err != nil {
		t.Fatalf("load daily quiz: %v", err)
	}
	questions, _ := api.store.QuestionReader.QuizQuestions(context.Background(), daily.ID)
	for _, q := range questions[:2] {
		if status, _ := api.do(http.MethodPost, "/api/daily-quiz/questions/"+itoa(q.ID)+"/answer", token, map[string][]int{"chosen_answers": {1}}); status != http.StatusOK {
			t.Fatalf("answer daily question %d: %d", q.ID, status)
		}
	}
	if status, _ := api.do(http.MethodPost, "/api/daily-quiz/submit", token, nil); status != http.StatusOK {
		t.Fatalf("daily submit: %d", status)
	}
	if status, env := api.do(http.MethodPost, "/api/daily-quiz/submit", token, nil); status != http.StatusForbidden || env.Error.Message != "You have Already Attempted the Daily Quiz" {
		t.Fatalf("expected daily resubmit rejected, got %d %+v", status, env.Error)
	}

	status, env := api.do(http.MethodGet, "/api/leaderboard", "", nil)
	if status != http.StatusOK || len(env.Leaderboard) != 1 || env.Leaderboard[0].Points != 2 {
		t.Fatalf("expected 2 points on the leaderboard, got %d %+v", status, env.Leaderboard)
	}

	status, env = api.do(http.MethodGet, "/api/@me/notifications", token, nil)
	if status != http.StatusOK || len(env.Notifications) != 1 || env.Notifications[0].Title != "Daily Quiz Completed" {
		t.Fatalf("expected daily quiz notification, got %d %+v", status, env.Notifications)
	}
}

func TestEventsAndNotifications(t *testing.T) {
	api := newTestAPI(t, options{})
	alice := api.signUp("alice")
	bob := api.signUp("bob")

	event := map[string]string{"title": "exam", "description": "python", "start_date": "2026-11-01 09:00:00", "end_date": "2026-11-01 10:00:00"}
	status, env := api.do(http.MethodPost, "/api/@me/events", alice, event)
	if status != http.StatusCreated || env.Event.ID == 0 {
		t.Fatalf("create event: %d %+v", status, env.Error)
	}
	id := itoa(env.Event.ID)

	if status, env := api.do(http.MethodPost, "/api/@me/events", alice, map[string]string{"title": "x", "start_date": "tomorrow", "end_date": "2026-11-01 10:00:00"}); status != http.StatusBadRequest || env.Error.Message != "'start_date' is Invalid" {
		t.Fatalf("expected invalid start date, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodPut, "/api/@me/events/"+id, bob, event); status != http.StatusForbidden || env.Error.Message != "Forbidden" {
		t.Fatalf("expected foreign event forbidden, got %d %+v", status, env.Error)
	}
	event["title"] = "final exam"
	if status, env := api.do(http.MethodPut, "/api/@me/events/"+id, alice, event); status != http.StatusOK || env.Event.Title != "final exam" {
		t.Fatalf("update event: %d %+v", status, env)
	}
	if status, env := api.do(http.MethodGet, "/api/@me/events", alice, nil); status != http.StatusOK || len(env.Events) != 1 {
		t.Fatalf("list events: %d %+v", status, env.Events)
	}
	if status, _ := api.do(http.MethodDelete, "/api/@me/events/"+id, alice, nil); status != http.StatusOK {
		t.Fatalf("delete event: %d", status)
	}
	if status, env := api.do(http.MethodDelete, "/api/@me/events/"+id, alice, nil); status != http.StatusNotFound || env.Error.Message != "Event Not Found" {
		t.Fatalf("expected event not found, got %d %+v", status, env.Error)
	}

	if status, env := api.do(http.MethodDelete, "/api/@me/notifications/99", alice, nil); status != http.StatusNotFound || env.Error.Message != "Notification Not Found" {
		t.Fatalf("expected notification not found, got %d %+v", status, env.Error)
	}
	if status, env := api.do(http.MethodDelete, "/api/@me/notifications", alice, nil); status != http.StatusOK || env.Message != "Successfully Deleted All Notifications!" {
		t.Fatalf("clear notifications: %d %+v", status, env)
	}
}

func TestLoginThrottle(t *testing.T) {
	api := newTestAPI(t, options{limiter: memory.NewLoginLimiter(2, time.Minute)})
	body := map[string]string{"username": "ghost", "password": "pw"}

	for i := 0; i < 2; i++ {
		if status, _ := api.do(http.MethodPost, "/api/log-in", "", body); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, status)
		}
	}
	if status, env := api.do(http.MethodPost, "/api/log-in", "", body); status != http.StatusTooManyRequests || env.Error.Status != "Too Many Requests" {
		t.Fatalf("expected throttled, got %d %+v", status, env.Error)
	}
}

func TestLeaderboardLiveStream(t *testing.T) {
	api := newTestAPI(t, options{})
	api.signUp("hana")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = api.board.Run(ctx) }()

	server := httptest.NewServer(api.router)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/leaderboard/live", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if top := readLeaderboard(t, conn); len(top) != 1 || top[0].Points != 0 {
		t.Fatalf("unexpected initial standings %+v", top)
	}

	user, _ := api.store.Users.First(ctx, app.Eq("username", "hana"))
	if err := api.store.Users.AddPoints(ctx, user.ID, 4); err != nil {
		t.Fatalf("add points: %v", err)
	}
	// the hub subscribes asynchronously; keep nudging until it reloads
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				_ = api.notify.Publish(ctx)
			}
		}
	}()
	for {
		if top := readLeaderboard(t, conn); len(top) == 1 && top[0].Points == 4 {
			return
		}
	}
}

type standing struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
}

func readLeaderboard(t *testing.T, conn *websocket.Conn) []standing {
	t.Helper()
	var msg outboundMessage[[]standing]
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
