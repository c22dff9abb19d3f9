package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hello-world-api/internal/app"
	"hello-world-api/internal/domain"
)

// Handler adapts the app services to gin routes.
type Handler struct {
	accounts *app.AccountService
	sessions *app.SessionManager
	courses  *app.CourseService
	quizzes  *app.QuizService
	inbox    *app.InboxService
	board    *app.Leaderboard
	clients  clientResolver
	log      *zap.Logger
	debug    bool
	upgrader websocket.Upgrader
}

func (h *Handler) fail(c *gin.Context, err error) {
	fail(c, h.log, h.debug, err)
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logOutRequest struct {
	Token string `json:"token" binding:"required"`
}

type updateMeRequest struct {
	DisplayName *string `json:"display_name"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Bio         *string `json:"bio"`
}

type preferencesRequest struct {
	DailyQuizReminder *bool `json:"daily_quiz_reminder" binding:"required"`
	WeeklyNewsletter  *bool `json:"weekly_newsletter" binding:"required"`
}

type answerRequest struct {
	ChosenAnswers []int `json:"chosen_answers"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	client, err := h.clients.resolve(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	result, err := h.accounts.SignUp(c.Request.Context(), req.Username, req.Password, client)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"user": result.User, "token": result.Token})
}

func (h *Handler) logIn(c *gin.Context) {
	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	client, err := h.clients.resolve(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	result, err := h.accounts.LogIn(c.Request.Context(), req.Username, req.Password, client)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

func (h *Handler) logOut(c *gin.Context) {
	var req logOutRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.accounts.LogOut(c.Request.Context(), req.Token); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Successfully Logged Out!"})
}

func (h *Handler) me(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *Handler) updateMe(c *gin.Context) {
	var req updateMeRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.accounts.UpdateMe(c.Request.Context(), currentUser(c), app.ProfileUpdate{
		DisplayName: req.DisplayName,
		Username:    req.Username,
		Password:    req.Password,
		Bio:         req.Bio,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) deleteMe(c *gin.Context) {
	if err := h.accounts.DeleteMe(c.Request.Context(), currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

func (h *Handler) myCourses(c *gin.Context) {
	courses, err := h.courses.MyCourses(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) mySessions(c *gin.Context) {
	sessions, err := h.accounts.Sessions(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) preferences(c *gin.Context) {
	pref, err := h.accounts.Preferences(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"preferences": pref})
}

func (h *Handler) updatePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	pref, err := h.accounts.UpdatePreferences(c.Request.Context(), currentUser(c), *req.DailyQuizReminder, *req.WeeklyNewsletter)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"preferences": pref})
}

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.courses.ListCourses(c.Request.Context(), queryFlag(c, "with_categories"), queryFlag(c, "with_topics"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"courses": courses})
}

func (h *Handler) getCourse(c *gin.Context) {
	course, err := h.courses.GetCourse(c.Request.Context(), c.Param("course"), queryFlag(c, "with_categories"), queryFlag(c, "with_topics"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"course": course})
}

func (h *Handler) joinCourse(c *gin.Context) {
	course, err := h.courses.JoinCourse(c.Request.Context(), currentUser(c), c.Param("course"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": "Successfully Joined Course: " + course.Name})
}

func (h *Handler) leaveCourse(c *gin.Context) {
	course, err := h.courses.LeaveCourse(c.Request.Context(), currentUser(c), c.Param("course"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Successfully Left Course: " + course.Name})
}

func (h *Handler) topicResource(c *gin.Context) {
	resource, err := h.courses.TopicResource(c.Request.Context(), currentUser(c), c.Param("course"), c.Param("topic"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"resource": resource})
}

// quizRef resolves which quiz a quiz route addresses.
type quizRef func(c *gin.Context) app.QuizRef

func topicQuiz(c *gin.Context) app.QuizRef {
	return app.TopicQuizRef(c.Param("course"), c.Param("topic"))
}

func dailyQuiz(*gin.Context) app.QuizRef {
	return app.DailyQuizRef()
}

func (h *Handler) quizQuestions(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		quiz, err := h.quizzes.Questions(c.Request.Context(), currentUser(c), ref(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"quiz": quiz})
	}
}

func (h *Handler) quizQuestion(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "question")
		if err != nil {
			h.fail(c, err)
			return
		}
		question, err := h.quizzes.Question(c.Request.Context(), currentUser(c), ref(c), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"question": question})
	}
}

func (h *Handler) getAnswer(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "question")
		if err != nil {
			h.fail(c, err)
			return
		}
		answer, err := h.quizzes.Answer(c.Request.Context(), currentUser(c), ref(c), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"answer": answer})
	}
}

func (h *Handler) recordAnswer(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "question")
		if err != nil {
			h.fail(c, err)
			return
		}
		var req answerRequest
		if err := bindJSON(c, &req); err != nil {
			h.fail(c, err)
			return
		}
		answer, err := h.quizzes.RecordAnswer(c.Request.Context(), currentUser(c), ref(c), id, req.ChosenAnswers)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"answer": answer})
	}
}

func (h *Handler) submit(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := h.quizzes.Submit(c.Request.Context(), currentUser(c), ref(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"results": results})
	}
}

func (h *Handler) results(ref quizRef) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := h.quizzes.Results(c.Request.Context(), currentUser(c), ref(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"results": results})
	}
}

func (h *Handler) dailyStats(c *gin.Context) {
	stats, err := h.quizzes.DailyStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) leaderboard(c *gin.Context) {
	top, err := h.board.Top(c.Request.Context())
	if err != nil {
		h.fail(c, domain.Internal("load leaderboard", err))
		return
	}
	respond(c, http.StatusOK, gin.H{"leaderboard": top})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validation("'" + name + "' is Invalid")
	}
	return id, nil
}

func queryFlag(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}
