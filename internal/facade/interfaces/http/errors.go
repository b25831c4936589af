package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/vectorplus/pkg/protocol"
)

// StatusOf 领域错误分类到 HTTP 状态码
func StatusOf(err error) int {
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError
	}
	switch perr.Class {
	case protocol.ClassValidation:
		return http.StatusBadRequest
	case protocol.ClassNotFound:
		return http.StatusNotFound
	case protocol.ClassState:
		return http.StatusConflict
	case protocol.ClassTemporal, protocol.ClassEconomic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return "INTERNAL"
}

func fail(c *gin.Context, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"code": errorCode(err), "error": msg})
}

func badRequest(c *gin.Context, err error) {
	code := "BAD_REQUEST"
	var perr *protocol.Error
	if errors.As(err, &perr) {
		code = perr.Code
	}
	c.JSON(http.StatusBadRequest, gin.H{"code": code, "error": err.Error()})
}
