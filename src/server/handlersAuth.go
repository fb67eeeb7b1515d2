package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	app "wallserv/src/app"
)

const userContextKey = "user"

type (
	RegisterBody struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ProfileBody struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
)

// RequireUser rejects requests without a valid bearer token and stores the
// account under "user" for the handlers behind it.
func (a *AppHandler) RequireUser(c *gin.Context) {
	user, err := a.users.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.Set(userContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *app.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*app.User); ok {
			return user
		}
	}
	return nil
}

func (a *AppHandler) Register(c *gin.Context) {
	var body RegisterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	session, err := a.users.Register(c.Request.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully.", session)
}

func (a *AppHandler) Login(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	session, err := a.users.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User logged in successfully.", session)
}

func (a *AppHandler) GetProfile(c *gin.Context) {
	respond(c, http.StatusOK, "Profile fetched successfully.", a.users.Profile(currentUser(c)))
}

func (a *AppHandler) UpdateProfile(c *gin.Context) {
	var body ProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		a.respondError(c, badRequest(fmt.Sprintf("invalid JSON body: %v", err)))
		return
	}
	user, err := a.users.UpdateProfile(c.Request.Context(), currentUser(c), body.Name, body.Email)
	if err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully.", user)
}

func (a *AppHandler) DeleteAccount(c *gin.Context) {
	if err := a.users.DeleteAccount(c.Request.Context(), currentUser(c)); err != nil {
		a.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Account deleted successfully.", nil)
}
