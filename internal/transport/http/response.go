package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hello-world-api/internal/domain"
)

type statusText struct {
	short string
	long  string
}

var defaultMessages = map[int]statusText{
	http.StatusBadRequest:          {"Bad Request", "Your Request was Invalid"},
	http.StatusUnauthorized:        {"Un-Authorised", "You are Not Authorised to View this Resource"},
	http.StatusForbidden:           {"Forbidden", "You are Forbidden from Viewing this Resource"},
	http.StatusNotFound:            {"Not Found", "The Resource you Requested was Not Found"},
	http.StatusMethodNotAllowed:    {"Method Not Allowed", "The Method you Requested is Not Allowed"},
	http.StatusTooManyRequests:     {"Too Many Requests", "You have Made Too Many Requests"},
	http.StatusInternalServerError: {"Internal Server Error", "An Internal Server Error has Occured"},
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respond writes the success envelope {"code": status, ...extra}.
func respond(c *gin.Context, status int, extra gin.H) {
	body := gin.H{"code": status}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// abortWith writes the error envelope, falling back to the per-status
// default message when message is empty.
func abortWith(c *gin.Context, status int, message string) {
	text, ok := defaultMessages[status]
	if !ok {
		text = statusText{short: http.StatusText(status), long: http.StatusText(status)}
	}
	if message == "" {
		message = text.long
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"error": gin.H{
			"status":  text.short,
			"message": message,
		},
	})
}

// fail maps err onto the error envelope. Internal failures are logged and
// reported with the generic message unless debug is set.
func fail(c *gin.Context, log *zap.Logger, debug bool, err error) {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindInternal {
		abortWith(c, statusFor(de.Kind), de.Message)
		return
	}

	log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("route", c.FullPath()),
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Error(err),
	)
	message := ""
	if debug {
		message = err.Error()
	}
	abortWith(c, http.StatusInternalServerError, message)
}
