package routes

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/middleware"
	"github.com/congo-pay/accessgate/internal/onboarding"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// StatusFor maps an auth error to its HTTP status.
func StatusFor(err *auth.Error) int {
	switch err.Kind {
	case auth.KindCredential:
		switch err.Reason {
		case auth.ReasonAccountExists:
			return fiber.StatusConflict
		case auth.ReasonWeakPassword, auth.ReasonInvalidEmail:
			return fiber.StatusUnprocessableEntity
		case auth.ReasonTimeout:
			return fiber.StatusServiceUnavailable
		case auth.ReasonProvider:
			return fiber.StatusBadGateway
		default:
			return fiber.StatusUnauthorized
		}
	case auth.KindPrecondition:
		return fiber.StatusPreconditionFailed
	case auth.KindValidation:
		return fiber.StatusUnprocessableEntity
	case auth.KindPersistence:
		return fiber.StatusServiceUnavailable
	case auth.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func authErrorBody(err *auth.Error, message string) errorBody {
	if message == "" {
		message = onboarding.Message(err)
	}
	return errorBody{Kind: string(err.Kind), Reason: string(err.Reason), Message: message}
}

// ErrorHandler renders every error as {"error": {...}}.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ae *auth.Error
		if errors.As(err, &ae) {
			return c.Status(StatusFor(ae)).JSON(fiber.Map{"error": authErrorBody(ae, "")})
		}

		status := fiber.StatusInternalServerError
		message := "internal error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status, message = fe.Code, fe.Message
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.Any("error", err))
		}
		return c.Status(status).JSON(fiber.Map{"error": errorBody{Kind: "http", Message: message}})
	}
}

type outcomeBody struct {
	onboarding.Outcome
	Error *errorBody `json:"error,omitempty"`
}

// respond writes an onboarding outcome. A failed submission gets the status
// of its error; success gets okStatus.
func respond(c *fiber.Ctx, out onboarding.Outcome, okStatus int) error {
	body := outcomeBody{Outcome: out}
	status := okStatus
	if out.Err != nil {
		eb := authErrorBody(out.Err, out.Message)
		body.Error = &eb
		status = StatusFor(out.Err)
	}
	return c.Status(status).JSON(body)
}
