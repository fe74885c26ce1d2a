package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleChats(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	chats, err := s.gateway.Chats(c.Request().Context(), limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, chats)
}

func (s *Server) handleChatDetail(c echo.Context) error {
	entity, err := s.gateway.Resolve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, entity)
}

func (s *Server) handleChatMembers(c echo.Context) error {
	members, err := s.gateway.Members(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, members)
}

func (s *Server) handleContacts(c echo.Context) error {
	contacts, err := s.gateway.Contacts(c.Request().Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, contacts)
}
