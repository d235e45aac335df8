package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laboutiquedemorgane/boutique-backend/api/responses"
	"github.com/laboutiquedemorgane/boutique-backend/api/validators"
	"github.com/laboutiquedemorgane/boutique-backend/internal/ledger"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/enums"
	pkgerrors "github.com/laboutiquedemorgane/boutique-backend/pkg/errors"
	"github.com/laboutiquedemorgane/boutique-backend/pkg/logger"
)

type postLedgerEntryPayload struct {
	CustomerID  string  `json:"customer_id" validate:"required,uuid"`
	OrderID     *string `json:"order_id" validate:"omitempty,uuid"`
	Type        string  `json:"type" validate:"required"`
	Account     string  `json:"account" validate:"required"`
	Amount      string  `json:"amount" validate:"required"`
	Description string  `json:"description" validate:"required"`
}

// WalletBalance returns the customer's cached balances.
func WalletBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		balance, err := svc.Balance(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, balance)
	}
}

// WalletLedger returns the customer's ledger history, newest first.
func WalletLedger(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := authedCustomer(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		history, err := svc.History(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}

// LedgerPost records a manual ledger entry (goodwill credit, correction).
func LedgerPost(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload postLedgerEntryPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		customerID, err := uuid.Parse(payload.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		var orderID *uuid.UUID
		if payload.OrderID != nil {
			parsed, err := uuid.Parse(*payload.OrderID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			orderID = &parsed
		}

		entryType, err := enums.ParseLedgerEntryType(payload.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry type"))
			return
		}

		account, err := enums.ParseLedgerAccount(payload.Account)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account"))
			return
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		entry, err := svc.Post(ctx, ledger.PostEntryInput{
			CustomerID:  customerID,
			OrderID:     orderID,
			Type:        entryType,
			Account:     account,
			Amount:      amount,
			Description: payload.Description,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

// LedgerReplay recomputes a customer's balances from the ledger and reports drift.
func LedgerReplay(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := validators.ParsePathUUID(chi.URLParam(r, "customerID"), "customerID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Replay(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
