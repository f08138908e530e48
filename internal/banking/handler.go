package banking

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/bankledger/internal/ledger"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Number         string `json:"number"`
	OpeningBalance string `json:"opening_balance"`
}

type mutationRequest struct {
	Version string `json:"version"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	Version     string `json:"version"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Balance   string    `json:"balance"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
	Version   string `json:"version"`
}

type recordResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Outcome     string    `json:"outcome"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
	// Balance and Version are set when a withdrawal is rejected for funds.
	Balance string `json:"balance,omitempty"`
	Version string `json:"version,omitempty"`
}

// Open provisions an account.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Open(c.UserContext(), OpenInput{Number: req.Number, OpeningBalance: req.OpeningBalance})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toAccount(acc))
}

// Get returns an account's balance and version token.
func (h *Handler) Get(c *fiber.Ctx) error {
	acc, err := h.service.Account(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toAccount(acc))
}

// Transactions returns an account's audit trail.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	records, err := h.service.History(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, recordResponse{
			ID:          r.ID,
			Kind:        string(r.Kind),
			Outcome:     string(r.Outcome),
			Amount:      r.Amount.String(),
			Description: r.Description,
			Timestamp:   r.Timestamp,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":   c.Params("accountId"),
		"transactions": out,
	})
}

// Deposit credits the account in the path.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.Deposit(c.UserContext(), MutationInput{AccountID: c.Params("accountId"), Version: req.Version, Amount: req.Amount})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toBalance(bal))
}

// Withdraw debits the account in the path.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req mutationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.Withdraw(c.UserContext(), MutationInput{AccountID: c.Params("accountId"), Version: req.Version, Amount: req.Amount})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return c.Status(http.StatusUnprocessableEntity).JSON(errorResponse{
				Error:   ledger.ErrInsufficientFunds.Error(),
				Balance: bal.Amount.String(),
				Version: bal.Version.String(),
			})
		}
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(toBalance(bal))
}

// Transfer moves funds from the account in the path to a destination number.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Transfer(c.UserContext(), TransferInput{
		AccountID:   c.Params("accountId"),
		Version:     req.Version,
		Destination: req.Destination,
		Amount:      req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"record_id":    receipt.RecordID,
		"sender":       toBalance(receipt.SenderBalance),
		"receiver":     toBalance(receipt.ReceiverBalance),
		"committed_at": receipt.CommittedAt,
	})
}

// StatusFor maps a ledger or input error to an HTTP status.
func StatusFor(err error) int {
	switch {
	// commit-phase failures first: they may also wrap a version conflict
	case errors.Is(err, ledger.ErrTransferFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrDestinationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ErrInvalidVersion), errors.Is(err, ErrInvalidAccountNumber):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrSelfTransfer), errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrBalanceLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrVersionConflict), errors.Is(err, ledger.ErrDuplicateNumber):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return c.Status(status).JSON(errorResponse{Error: msg, Retryable: ledger.Retryable(err)})
}

func toAccount(acc ledger.Account) accountResponse {
	return accountResponse{
		ID:        acc.ID,
		Number:    acc.Number,
		Balance:   acc.Balance.String(),
		Version:   acc.Version.String(),
		CreatedAt: acc.CreatedAt,
	}
}

func toBalance(b ledger.Balance) balanceResponse {
	return balanceResponse{
		AccountID: b.AccountID,
		Balance:   b.Amount.String(),
		Version:   b.Version.String(),
	}
}
