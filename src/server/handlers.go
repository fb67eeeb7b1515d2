package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "wallserv/src/app"
	cfg "wallserv/src/configuration"
)

type AppHandler struct {
	images        *app.ImageService
	users         *app.UserService
	log           logrus.FieldLogger
	maxUploadSize int64
}

func NewHandler(config *cfg.Properties, images *app.ImageService, users *app.UserService, logger logrus.FieldLogger) *AppHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AppHandler{
		images:        images,
		users:         users,
		log:           logger.WithField("component", "http"),
		maxUploadSize: config.Server.MaxUploadSize,
	}
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func respond(c *gin.Context, status int, message string, payload interface{}) {
	body := gin.H{"status": "success", "message": message}
	if payload != nil {
		body["payload"] = payload
	}
	c.JSON(status, body)
}

// respondError writes the error envelope. Storage details stay in the log.
func (a *AppHandler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"message": "error", "error": err.Error()}

	var verr *app.ValidationError
	if errors.As(err, &verr) {
		if verr.Index >= 0 {
			body["index"] = verr.Index
		}
		if verr.Field != "" {
			body["field"] = verr.Field
		}
	}
	switch {
	case errors.Is(err, app.ErrNoToken):
		body["error"] = "Not authorized, no token"
	case errors.Is(err, app.ErrTokenExpired):
		body["error"] = "Token has expired, please login again"
	case errors.Is(err, app.ErrTokenInvalid):
		body["error"] = "Not authorized, token failed"
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		a.log.WithError(err).WithField("route", c.FullPath()).Error("request failed")
		body["error"] = "internal server error"
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoToken), errors.Is(err, app.ErrTokenInvalid),
		errors.Is(err, app.ErrTokenExpired), errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, app.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, app.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// badRequest reports a body that could not be decoded at all.
func badRequest(reason string) error {
	return &app.ValidationError{Index: -1, Reason: reason}
}
