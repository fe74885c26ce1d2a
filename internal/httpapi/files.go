package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// maxDownloadBytes caps in-memory media buffering; larger payloads are
// refused instead of exhausting the process.
const maxDownloadBytes = 256 << 20

var errFileTooLarge = errors.New("httpapi: file exceeds download limit")

// cappedBuffer fails the download once the limit is crossed so the provider
// transfer stops early.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.max {
		return 0, errFileTooLarge
	}
	return b.buf.Write(p)
}

func (s *Server) handleDownload(c echo.Context) error {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil || messageID <= 0 {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid message id"})
	}

	buf := &cappedBuffer{max: maxDownloadBytes}
	desc, err := s.gateway.Download(c.Request().Context(), c.Param("chat_id"), messageID, buf)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: errFileTooLarge.Error()})
		}
		return s.respondError(c, err)
	}

	contentType := desc.MIMEType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	filename := desc.FileName
	if filename == "" {
		filename = fmt.Sprintf("file_%d", messageID)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	return c.Blob(http.StatusOK, contentType, buf.buf.Bytes())
}
