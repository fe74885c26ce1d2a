package httpapi

import (
	"net/http"

	"tggate/pkg/gate"

	"github.com/labstack/echo/v4"
)

// statusResponse is the payload of the status and auth endpoints. Result
// collapses the state machine into the three outcomes clients branch on.
type statusResponse struct {
	Connected bool              `json:"connected"`
	State     gate.AuthState    `json:"state"`
	Result    string            `json:"result"`
	User      *gate.UserProfile `json:"user,omitempty"`
}

const (
	resultSuccess          = "success"
	resultPasswordRequired = "password_required"
	resultNotAuthorized    = "not_authorized"
)

func authResult(status gate.AuthStatus) string {
	switch status.State {
	case gate.StateAuthorized:
		return resultSuccess
	case gate.StateAwaitingPassword:
		return resultPasswordRequired
	default:
		return resultNotAuthorized
	}
}

func statusBody(status gate.AuthStatus) statusResponse {
	return statusResponse{
		Connected: status.Authorized(),
		State:     status.State,
		Result:    authResult(status),
		User:      status.User,
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusBody(s.auth.Status()))
}

func (s *Server) handleRequestCode(c echo.Context) error {
	ctx := c.Request().Context()

	// Opening the transport on demand lets a cold gateway serve the first
	// sign-in without a separate connect call.
	if s.auth.Status().State == gate.StateUnauthenticated {
		if err := s.auth.Start(ctx); err != nil {
			return s.respondError(c, err)
		}
	}

	status := s.auth.Status()
	if status.Authorized() {
		return c.JSON(http.StatusOK, statusBody(status))
	}

	if err := s.auth.RequestCode(ctx); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, statusBody(s.auth.Status()))
}

// authenticateRequest carries either a login code or a second factor
// password, never both.
type authenticateRequest struct {
	Code     string `json:"code,omitempty"`
	Password string `json:"password,omitempty"`
}

func (s *Server) handleAuthenticate(c echo.Context) error {
	var req authenticateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body"})
	}

	ctx := c.Request().Context()

	var (
		status gate.AuthStatus
		err    error
	)
	switch {
	case req.Code != "":
		status, err = s.auth.SubmitCode(ctx, req.Code)
	case req.Password != "":
		status, err = s.auth.SubmitPassword(ctx, req.Password)
	default:
		return c.JSON(http.StatusBadRequest, errorBody{Error: "code or password is required"})
	}
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(http.StatusOK, statusBody(status))
}

func (s *Server) handleDisconnect(c echo.Context) error {
	s.auth.Disconnect()
	return c.JSON(http.StatusOK, statusBody(s.auth.Status()))
}
