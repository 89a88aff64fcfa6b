package routes

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/accessgate/internal/auth"
	"github.com/congo-pay/accessgate/internal/middleware"
)

type profileRequest struct {
	FullName       string   `json:"full_name"`
	Phone          string   `json:"phone"`
	DateOfBirth    string   `json:"date_of_birth"`
	Occupation     string   `json:"occupation"`
	MonthlyIncome  *float64 `json:"monthly_income"`
	FinancialGoals string   `json:"financial_goals"`
	PIN            string   `json:"pin"`
	ConfirmPIN     string   `json:"confirm_pin"`
}

func (r profileRequest) fields() (auth.ProfileFields, error) {
	f := auth.ProfileFields{
		FullName:       strings.TrimSpace(r.FullName),
		Phone:          strings.TrimSpace(r.Phone),
		Occupation:     strings.TrimSpace(r.Occupation),
		MonthlyIncome:  r.MonthlyIncome,
		FinancialGoals: strings.TrimSpace(r.FinancialGoals),
	}
	if r.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, r.DateOfBirth)
		if err != nil {
			return auth.ProfileFields{}, fiber.NewError(fiber.StatusUnprocessableEntity, "date_of_birth must be YYYY-MM-DD")
		}
		f.DateOfBirth = &dob
	}
	if r.MonthlyIncome != nil && *r.MonthlyIncome < 0 {
		return auth.ProfileFields{}, fiber.NewError(fiber.StatusUnprocessableEntity, "monthly_income must not be negative")
	}
	return f, nil
}

// RegisterProfileRoutes wires profile, linked-account and PIN endpoints.
// idempotent guards the record-creating submissions.
func RegisterProfileRoutes(r fiber.Router, idempotent fiber.Handler) {
	r.Post("/profile", idempotent, func(c *fiber.Ctx) error {
		var req profileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		fields, err := req.fields()
		if err != nil {
			return err
		}
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SubmitProfile(c.UserContext(), fields, req.PIN, req.ConfirmPIN), fiber.StatusCreated)
	})

	r.Get("/profile/status", func(c *fiber.Ctx) error {
		status, err := middleware.ScopeFrom(c).Manager.CheckUserStatus(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(status)
	})

	r.Post("/onboarding/account", func(c *fiber.Ctx) error {
		var req struct {
			Skip bool `json:"skip"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SubmitAddAccount(c.UserContext(), req.Skip), fiber.StatusOK)
	})

	r.Post("/pin", idempotent, func(c *fiber.Ctx) error {
		var req struct {
			PIN        string `json:"pin"`
			ConfirmPIN string `json:"confirm_pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SubmitCreatePin(c.UserContext(), req.PIN, req.ConfirmPIN), fiber.StatusCreated)
	})

	r.Post("/pin/verify", func(c *fiber.Ctx) error {
		var req struct {
			PIN string `json:"pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		sess := middleware.ScopeFrom(c)
		return respond(c, sess.Controller.SubmitEnterPin(c.UserContext(), req.PIN), fiber.StatusOK)
	})
}
