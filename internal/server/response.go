package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fintrack-dev/fintrack/internal/importer"
)

// Business error codes carried in the response envelope.
const (
	CodeOK           = 0
	CodeInvalidParam = 40001
	CodeNotFound     = 40401
	CodeConflict     = 40901
	CodeTooLarge     = 41301
	CodeServerErr    = 50001
	CodeStoreErr     = 50201
)

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

func fail(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": msg,
	})
}

// failErr maps importer errors to HTTP statuses.
func failErr(c *gin.Context, err error) {
	var (
		stateErr  *importer.StateError
		commitErr *importer.CommitError
	)
	switch {
	case errors.Is(err, importer.ErrSessionNotFound):
		fail(c, http.StatusNotFound, CodeNotFound, err.Error())
	case importer.IsUserError(err), errors.Is(err, importer.ErrUnknownAccount):
		fail(c, http.StatusBadRequest, CodeInvalidParam, err.Error())
	case errors.As(err, &stateErr), errors.Is(err, importer.ErrBusy), errors.Is(err, importer.ErrImportInProgress):
		fail(c, http.StatusConflict, CodeConflict, err.Error())
	case errors.As(err, &commitErr):
		fail(c, http.StatusBadGateway, CodeStoreErr, err.Error())
	default:
		fail(c, http.StatusInternalServerError, CodeServerErr, err.Error())
	}
}
