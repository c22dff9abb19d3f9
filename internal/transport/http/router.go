package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hello-world-api/internal/app"
	"hello-world-api/internal/metrics"
)

// Deps is everything the router wires into handlers and middleware.
type Deps struct {
	Accounts     *app.AccountService
	Sessions     *app.SessionManager
	Courses      *app.CourseService
	Quizzes      *app.QuizService
	Inbox        *app.InboxService
	Leaderboard  *app.Leaderboard
	Locator      Locator
	LoginLimiter LoginLimiter
	Metrics      *metrics.Metrics
	Log          *zap.Logger

	Debug          bool
	AllowedOrigins []string
	RequestsPerSec float64
	RequestBurst   int
}

// NewRouter builds the gin engine serving the public API.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	useJSONNames()

	h := &Handler{
		accounts: d.Accounts,
		sessions: d.Sessions,
		courses:  d.Courses,
		quizzes:  d.Quizzes,
		inbox:    d.Inbox,
		board:    d.Leaderboard,
		clients:  clientResolver{locator: d.Locator, debug: d.Debug, log: d.Log},
		log:      d.Log,
		debug:    d.Debug,
		upgrader: newUpgrader(d.AllowedOrigins),
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(requestID(), accessLog(d.Log), recovery(d.Log), cors(d.AllowedOrigins))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", d.Metrics.Handler())
	}
	if d.RequestsPerSec > 0 {
		r.Use(rateLimit(d.RequestsPerSec, d.RequestBurst))
	}
	r.NoRoute(func(c *gin.Context) { abortWith(c, http.StatusNotFound, "") })
	r.NoMethod(func(c *gin.Context) { abortWith(c, http.StatusMethodNotAllowed, "") })

	r.GET("/healthz", func(c *gin.Context) { respond(c, http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	auth := authenticate(d.Sessions, d.Log, d.Debug)

	credentials := api.Group("")
	if d.LoginLimiter != nil {
		credentials.Use(loginThrottle(d.LoginLimiter, d.Log))
	}
	credentials.POST("/sign-up", h.signUp)
	credentials.POST("/log-in", h.logIn)
	api.POST("/log-out", h.logOut)

	me := api.Group("/@me", auth)
	me.GET("", h.me)
	me.PUT("", h.updateMe)
	me.DELETE("", h.deleteMe)
	me.GET("/courses", h.myCourses)
	me.GET("/sessions", h.mySessions)
	me.GET("/preferences", h.preferences)
	me.PUT("/preferences", h.updatePreferences)
	me.GET("/events", h.events)
	me.POST("/events", h.createEvent)
	me.PUT("/events/:event", h.updateEvent)
	me.DELETE("/events/:event", h.deleteEvent)
	me.GET("/notifications", h.notifications)
	me.DELETE("/notifications", h.clearNotifications)
	me.DELETE("/notifications/:notification", h.deleteNotification)

	api.GET("/courses", h.listCourses)
	api.GET("/courses/:course", h.getCourse)
	course := api.Group("/courses/:course", auth)
	course.POST("/join", h.joinCourse)
	course.DELETE("/leave", h.leaveCourse)
	course.GET("/topics/:topic/resource", h.topicResource)

	registerQuizRoutes(course.Group("/topics/:topic/quiz"), h, topicQuiz)

	api.GET("/daily-quiz/stats", h.dailyStats)
	registerQuizRoutes(api.Group("/daily-quiz", auth), h, dailyQuiz)

	api.GET("/leaderboard", h.leaderboard)
	api.GET("/leaderboard/live", h.leaderboardLive)

	return r
}

func registerQuizRoutes(g *gin.RouterGroup, h *Handler, ref quizRef) {
	g.GET("/questions", h.quizQuestions(ref))
	g.GET("/questions/:question", h.quizQuestion(ref))
	g.GET("/questions/:question/answer", h.getAnswer(ref))
	g.POST("/questions/:question/answer", h.recordAnswer(ref))
	g.POST("/submit", h.submit(ref))
	g.GET("/results", h.results(ref))
}
