// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ticketing-backend/internal/apperr"
	"github.com/javajoker/ticketing-backend/internal/i18n"
	"github.com/javajoker/ticketing-backend/internal/utils"
)

// statusFor maps an application error code to its HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidInput, apperr.CodeEmptyRequest:
		return http.StatusBadRequest
	case apperr.CodeForbidden, apperr.CodeNotOwner:
		return http.StatusForbidden
	case apperr.CodePaymentProcessor:
		return http.StatusPaymentRequired
	case apperr.CodeInvalidOrderStatus,
		apperr.CodeReservationExpired,
		apperr.CodeInsufficientInventory,
		apperr.CodeReleaseExceedsReserved,
		apperr.CodeAuthorizationExpired,
		apperr.CodeCountMismatch,
		apperr.CodeAuthorizationConsumed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the standard envelope. Server-side failures are
// logged and their causes kept out of the response.
func respondError(c *gin.Context, err error) {
	respondErrorWithDetails(c, err, nil)
}

func respondErrorWithDetails(c *gin.Context, err error, details interface{}) {
	lang := utils.GetLangFromContext(c)
	code := apperr.CodeOf(err)
	status := statusFor(code)

	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"path": c.FullPath(),
			"code": int(code),
		}).Error("Request failed")
	}

	utils.ErrorResponse(c, status, strconv.Itoa(int(code)), i18n.TOr(lang, i18n.ErrorKey(int(code)), message), details)
}

// currentUser reads the authenticated user id set by the auth middleware.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates a JSON body.
func bind(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}
