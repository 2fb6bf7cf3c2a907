// Package transfer moves money out of a wallet, either to another wallet or to a bank
// account through the payment gateway.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/metrics"
	"ledgerpay/internal/models"
	"ledgerpay/internal/repositories"
	"ledgerpay/internal/services/gateway"
	"ledgerpay/internal/services/ledger"
	"ledgerpay/internal/services/limits"
	"ledgerpay/internal/services/notification"
	"ledgerpay/internal/services/tier"

	"github.com/shopspring/decimal"
)

// Result statuses.
const (
	StatusSuccess              = "success"
	StatusPending              = "pending"
	StatusPendingAuthorization = "pending_authorization"
)

// Gateway is the part of the payment gateway the engine drives.
type Gateway interface {
	FindBank(ctx context.Context, name string) (gateway.Bank, error)
	ValidateAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetails, error)
	InitiateTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResponse, error)
	AuthorizeTransfer(ctx context.Context, reference, otp string) (*gateway.TransferResponse, error)
}

// WalletInvalidator drops cached wallet views after balances change.
type WalletInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...uint)
}

type Request struct {
	SenderID         uint                `json:"-"`
	RecipientAccount string              `json:"recipient_account_number"`
	Amount           decimal.Decimal     `json:"amount"`
	TransferType     models.TransferType `json:"transfer_type"`
	Description      string              `json:"description"`
	BankName         string              `json:"bank_name"`
}

type Result struct {
	Reference    string              `json:"reference"`
	Status       string              `json:"status"`
	Message      string              `json:"message"`
	Amount       decimal.Decimal     `json:"amount"`
	TransferType models.TransferType `json:"transfer_type"`
}

type AuthorizationResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type Deps struct {
	Store         repositories.Store
	Gateway       Gateway
	Tracker       *limits.Tracker
	Notifier      notification.Notifier
	Metrics       metrics.Recorder
	Wallets       WalletInvalidator
	Logger        *slog.Logger
	MinimumAmount decimal.Decimal
}

type Engine struct {
	store    repositories.Store
	gateway  Gateway
	tracker  *limits.Tracker
	notifier notification.Notifier
	metrics  metrics.Recorder
	wallets  WalletInvalidator
	logger   *slog.Logger
	minimum  decimal.Decimal
	now      func() time.Time
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...uint) {}

func NewEngine(d Deps) *Engine {
	if d.Store == nil {
		panic("store is required")
	}
	if d.Gateway == nil {
		panic("gateway is required")
	}
	if d.Tracker == nil {
		d.Tracker = limits.NewTracker(time.UTC, nil)
	}
	if d.Notifier == nil {
		d.Notifier = notification.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Noop{}
	}
	if d.Wallets == nil {
		d.Wallets = nopInvalidator{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Engine{
		store:    d.Store,
		gateway:  d.Gateway,
		tracker:  d.Tracker,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		wallets:  d.Wallets,
		logger:   d.Logger,
		minimum:  d.MinimumAmount,
		now:      time.Now,
	}
}

// target is where a transfer lands, resolved once before any state is touched.
type target interface {
	transferType() models.TransferType
}

type internalTarget struct {
	wallet *models.Wallet
	user   *models.User
}

func (internalTarget) transferType() models.TransferType { return models.TransferInternal }

type externalTarget struct {
	bankCode      string
	bankName      string
	accountNumber string
	accountName   string
}

func (externalTarget) transferType() models.TransferType { return models.TransferExternal }

type sender struct {
	user    *models.User
	account string
}

// Transfer validates req, moves the money atomically and, for bank transfers, hands the
// disbursement to the gateway after the ledger is committed.
func (e *Engine) Transfer(ctx context.Context, req Request) (*Result, error) {
	start := e.now()
	res, err := e.transfer(ctx, req)
	outcome := "rejected"
	if err == nil {
		outcome = res.Status
	} else if errors.Is(err, apperrors.ErrGatewayRejected) {
		outcome = "failed"
	}
	e.metrics.RecordTransfer(transferTypeLabel(req.TransferType), outcome, req.Amount, e.now().Sub(start))
	return res, err
}

// transferTypeLabel keeps client input out of metric label values.
func transferTypeLabel(t models.TransferType) string {
	if !t.Valid() {
		return "invalid"
	}
	return string(t)
}

func (e *Engine) transfer(ctx context.Context, req Request) (*Result, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}

	from, err := e.loadSender(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	to, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reference := ledger.NewTransferReference(req.SenderID)
	if err := e.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		return e.apply(ctx, tx, req, from, to, reference)
	}); err != nil {
		return nil, err
	}

	switch t := to.(type) {
	case internalTarget:
		e.wallets.Invalidate(ctx, req.SenderID, t.user.ID)
		e.logger.Info("internal transfer completed", "reference", reference,
			"sender_id", req.SenderID, "recipient_id", t.user.ID, "amount", req.Amount.StringFixed(2))
		e.notifier.Notify(ctx, from.user.Email, fmt.Sprintf("You sent NGN %s to %s. Ref: %s",
			req.Amount.StringFixed(2), t.user.FullName(), reference))
		e.notifier.Notify(ctx, t.user.Email, fmt.Sprintf("You received NGN %s from %s. Ref: %s",
			req.Amount.StringFixed(2), from.user.FullName(), ledger.CreditReference(reference)))
		return &Result{
			Reference:    reference,
			Status:       StatusSuccess,
			Message:      "Transfer successful",
			Amount:       req.Amount,
			TransferType: models.TransferInternal,
		}, nil
	case externalTarget:
		e.wallets.Invalidate(ctx, req.SenderID)
		return e.disburse(ctx, req, from, t, reference)
	}
	return nil, fmt.Errorf("unhandled transfer target %T", to)
}

func (e *Engine) validate(req Request) error {
	if !req.Amount.GreaterThan(e.minimum) {
		return apperrors.ErrInvalidAmount.WithMessage("amount must be greater than %s", e.minimum.StringFixed(2))
	}
	if req.Amount.Exponent() < -2 && !req.Amount.Equal(req.Amount.Round(2)) {
		return apperrors.ErrInvalidAmount.WithMessage("amount cannot have more than two decimal places")
	}
	if !req.TransferType.Valid() {
		return apperrors.Validation("transfer_type must be internal or external")
	}
	if strings.TrimSpace(req.RecipientAccount) == "" {
		return apperrors.Validation("recipient_account_number is required")
	}
	if req.TransferType == models.TransferExternal && strings.TrimSpace(req.BankName) == "" {
		return apperrors.Validation("bank_name is required for external transfers")
	}
	return nil
}

func (e *Engine) loadSender(ctx context.Context, userID uint) (sender, error) {
	user, err := e.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return sender{}, apperrors.NotFound("sender not found")
		}
		return sender{}, err
	}
	wallet, err := e.store.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return sender{}, apperrors.ErrWalletNotFound
		}
		return sender{}, err
	}
	s := sender{user: user}
	if wallet.AccountNumber != nil {
		s.account = *wallet.AccountNumber
	}
	return s, nil
}

func (e *Engine) resolve(ctx context.Context, req Request) (target, error) {
	account := strings.TrimSpace(req.RecipientAccount)

	if req.TransferType == models.TransferInternal {
		wallet, err := e.store.GetWalletByAccountNumber(ctx, account)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, apperrors.NotFound("recipient wallet not found")
			}
			return nil, err
		}
		if wallet.UserID == req.SenderID {
			return nil, apperrors.ErrSelfTransfer
		}
		user, err := e.store.GetUserByID(ctx, wallet.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipient: %w", err)
		}
		return internalTarget{wallet: wallet, user: user}, nil
	}

	bank, err := e.gateway.FindBank(ctx, req.BankName)
	if err != nil {
		return nil, gatewayFailure(err)
	}
	details, err := e.gateway.ValidateAccount(ctx, account, bank.Code)
	if err != nil {
		if gateway.IsRejection(err) {
			return nil, apperrors.Validation("recipient account could not be validated")
		}
		return nil, gatewayFailure(err)
	}
	return externalTarget{
		bankCode:      bank.Code,
		bankName:      bank.Name,
		accountNumber: account,
		accountName:   details.AccountName,
	}, nil
}

// apply runs inside one transaction. Wallets are locked before trackers, each in
// ascending user id order.
func (e *Engine) apply(ctx context.Context, tx repositories.Store, req Request, from sender, to target, reference string) error {
	ids := []uint{req.SenderID}
	in, internal := to.(internalTarget)
	if internal {
		ids = append(ids, in.user.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	wallets, err := tx.LockWallets(ctx, ids...)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.ErrWalletNotFound
		}
		return err
	}
	src := wallets[req.SenderID]
	if src.Balance.LessThan(req.Amount) {
		return apperrors.ErrInsufficientBalance
	}

	trackers := make(map[uint]*models.LimitTracker, len(ids))
	for _, id := range ids {
		t, err := e.tracker.Acquire(ctx, tx, id)
		if err != nil {
			return err
		}
		trackers[id] = t
	}

	srcRules, err := tier.Lookup(src.Tier)
	if err != nil {
		return err
	}
	if err := limits.CheckAndReserve(trackers[req.SenderID], limits.Outflow, req.Amount, srcRules.DailyOutflowCap); err != nil {
		return err
	}

	var dst *models.Wallet
	if internal {
		dst = wallets[in.user.ID]
		dstRules, err := tier.Lookup(dst.Tier)
		if err != nil {
			return err
		}
		if err := limits.CheckAndReserve(trackers[dst.UserID], limits.Inflow, req.Amount, dstRules.DailyInflowCap); err != nil {
			return apperrors.ErrLimitExceeded.WithMessage("recipient daily inflow limit exceeded")
		}
		if dst.Balance.Add(req.Amount).GreaterThan(dstRules.MaxBalance) {
			return apperrors.ErrBalanceCapExceeded
		}
	}

	src.Balance = src.Balance.Sub(req.Amount)
	if err := tx.UpdateWallet(ctx, src); err != nil {
		return fmt.Errorf("failed to debit sender: %w", err)
	}
	if dst != nil {
		dst.Balance = dst.Balance.Add(req.Amount)
		if err := tx.UpdateWallet(ctx, dst); err != nil {
			return fmt.Errorf("failed to credit recipient: %w", err)
		}
	}
	for _, id := range ids {
		if err := tx.SaveLimitTracker(ctx, trackers[id]); err != nil {
			return fmt.Errorf("failed to save limit tracker: %w", err)
		}
	}

	entries := e.entries(req, from, to, reference)
	if err := tx.CreateTransactions(ctx, entries...); err != nil {
		return fmt.Errorf("failed to write ledger entries: %w", err)
	}
	return nil
}

func (e *Engine) entries(req Request, from sender, to target, reference string) []*models.Transaction {
	now := e.now().UTC()
	description := strings.TrimSpace(req.Description)

	switch t := to.(type) {
	case internalTarget:
		pair := reference
		recipientID, senderID := t.user.ID, req.SenderID
		recipientAccount := ""
		if t.wallet.AccountNumber != nil {
			recipientAccount = *t.wallet.AccountNumber
		}
		base := models.Transaction{
			PairReference:    &pair,
			SenderName:       from.user.FullName(),
			SenderAccount:    from.account,
			RecipientName:    t.user.FullName(),
			RecipientAccount: recipientAccount,
			Amount:           req.Amount,
			Fee:              decimal.Zero,
			TransferType:     models.TransferInternal,
			Status:           models.StatusSuccess,
			Description:      description,
			CreatedAt:        now,
			CompletedAt:      &now,
		}
		debit, credit := base, base
		debit.Reference, debit.OwnerID, debit.CounterpartyID, debit.Type = reference, req.SenderID, &recipientID, models.TransactionTypeDebit
		credit.Reference, credit.OwnerID, credit.CounterpartyID, credit.Type = ledger.CreditReference(reference), recipientID, &senderID, models.TransactionTypeCredit
		return []*models.Transaction{&debit, &credit}

	case externalTarget:
		entry := &models.Transaction{
			Reference:        reference,
			OwnerID:          req.SenderID,
			SenderName:       from.user.FullName(),
			SenderAccount:    from.account,
			RecipientName:    t.accountName,
			RecipientAccount: t.accountNumber,
			RecipientBank:    t.bankName,
			Amount:           req.Amount,
			Fee:              decimal.Zero,
			Type:             models.TransactionTypeDebit,
			TransferType:     models.TransferExternal,
			Status:           models.StatusPending,
			Description:      description,
			CreatedAt:        now,
		}
		entry.SetMeta("bank_code", t.bankCode)
		return []*models.Transaction{entry}
	}
	return nil
}

// disburse hands a committed external debit to the gateway. Only a definitive
// rejection reverses the debit; an unknown outcome leaves it pending for the webhook
// or the sweep.
func (e *Engine) disburse(ctx context.Context, req Request, from sender, to externalTarget, reference string) (*Result, error) {
	result := &Result{
		Reference:    reference,
		Status:       StatusPending,
		Message:      "Transfer is processing",
		Amount:       req.Amount,
		TransferType: models.TransferExternal,
	}

	resp, err := e.gateway.InitiateTransfer(ctx, gateway.TransferRequest{
		Amount:                   req.Amount,
		Reference:                reference,
		Narration:                narration(req.Description),
		DestinationBankCode:      to.bankCode,
		DestinationAccountNumber: to.accountNumber,
	})
	if err != nil {
		var ge *gateway.GatewayError
		if errors.As(err, &ge) && ge.Rejected() {
			return nil, e.compensate(ctx, reference, ge)
		}
		e.logger.Warn("disbursement outcome unknown; left pending", "reference", reference, "error", err)
		return result, nil
	}

	e.logger.Info("disbursement initiated", "reference", reference, "sender_id", req.SenderID,
		"gateway_status", resp.Status, "amount", req.Amount.StringFixed(2))
	if strings.EqualFold(resp.Status, gateway.StatusPendingAuthorization) {
		result.Status = StatusPendingAuthorization
		result.Message = "Transfer requires OTP authorization"
	}
	e.notifier.Notify(ctx, from.user.Email, fmt.Sprintf("Your transfer of NGN %s to %s (%s) is processing. Ref: %s",
		req.Amount.StringFixed(2), to.accountName, to.bankName, reference))
	return result, nil
}

func (e *Engine) compensate(ctx context.Context, reference string, ge *gateway.GatewayError) error {
	rejected := apperrors.ErrGatewayRejected.WithMessage("%s", ge.Message).WithDetails(ge.Body)

	var ownerID uint
	err := e.store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		entry, err := tx.LockTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		ownerID = entry.OwnerID
		if entry.IsTerminal() {
			return nil
		}
		return ledger.FailDebit(ctx, tx, e.tracker, entry, ge.Message, e.now().UTC())
	})
	if err != nil {
		e.logger.Error("failed to reverse rejected disbursement", "reference", reference, "error", err)
		return fmt.Errorf("failed to reverse rejected disbursement %s: %w", reference, err)
	}
	e.wallets.Invalidate(ctx, ownerID)
	e.logger.Warn("disbursement rejected; debit reversed", "reference", reference,
		"status", ge.StatusCode, "message", ge.Message)
	return rejected
}

// AuthorizeTransfer forwards an OTP for one of the user's pending bank transfers. The
// entry stays pending until the webhook reports the final outcome.
func (e *Engine) AuthorizeTransfer(ctx context.Context, userID uint, reference, otp string) (*AuthorizationResult, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, apperrors.Validation("otp is required")
	}
	entry, err := e.store.GetTransactionByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, err
	}
	if entry.OwnerID != userID {
		return nil, apperrors.ErrTransactionNotFound
	}
	if !entry.IsExternalDebit() {
		return nil, apperrors.Validation("only bank transfers require authorization")
	}
	if entry.IsTerminal() {
		return nil, apperrors.Conflict(fmt.Sprintf("transaction is already %s", entry.Status))
	}

	resp, err := e.gateway.AuthorizeTransfer(ctx, reference, otp)
	if err != nil {
		return nil, gatewayFailure(err)
	}
	e.logger.Info("disbursement authorized", "reference", reference, "gateway_status", resp.Status)
	return &AuthorizationResult{Reference: reference, Status: resp.Status}, nil
}

func gatewayFailure(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	var ge *gateway.GatewayError
	if errors.As(err, &ge) {
		if ge.Rejected() {
			return apperrors.ErrGatewayRejected.WithMessage("%s", ge.Message).WithDetails(ge.Body)
		}
		return apperrors.ErrGateway.WithMessage("%s", ge.Message).WithDetails(ge.Body)
	}
	return apperrors.ErrGateway.WithMessage("payment gateway unavailable: %v", err)
}

func narration(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return "Wallet transfer"
	}
	return description
}
