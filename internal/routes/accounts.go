package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/banking"
)

// RegisterAccountRoutes wires account endpoints. limiter guards the
// balance-mutating routes.
func RegisterAccountRoutes(r fiber.Router, h *banking.Handler, limiter fiber.Handler) {
	r.Post("/accounts", h.Open)
	r.Get("/accounts/:accountId", h.Get)
	r.Get("/accounts/:accountId/transactions", h.Transactions)
	r.Post("/accounts/:accountId/deposit", limiter, h.Deposit)
	r.Post("/accounts/:accountId/withdraw", limiter, h.Withdraw)
	r.Post("/accounts/:accountId/transfer", limiter, h.Transfer)
}
