package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/ledger-engine/internal/card"
	"github.com/Dan9191/ledger-engine/internal/config"
	"github.com/Dan9191/ledger-engine/internal/ledger"
	"github.com/Dan9191/ledger-engine/internal/loan"
	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
	"github.com/Dan9191/ledger-engine/internal/repository"
	"github.com/Dan9191/ledger-engine/internal/utils"
	"github.com/Dan9191/ledger-engine/internal/utils/email"
)

var (
	// ErrInvalidAmount rejects non-positive transaction amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrCardNotEligible means the account does not meet issuance criteria.
	ErrCardNotEligible = errors.New("account not eligible for a card")
)

// minCardScore and minCardMovement are the card issuance criteria: the
// externally computed score and the total transacted volume.
const minCardScore = 600

var minCardMovement = money.FromMinorUnits(100000) // 1000.00

// Service handles business logic. The derivation engines it composes are
// pure; all state lives behind the repository, except the per-card CVV
// reveal windows held here for the session.
type Service struct {
	repo   *repository.Repository
	log    *logrus.Logger
	config *config.Config

	policy loan.Policy
	recon  *ledger.Reconstructor
	alerts *email.Sender

	mu      sync.Mutex
	reveals map[int64]*card.Manager // by card id
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config, alerts *email.Sender) *Service {
	return &Service{
		repo:   repo,
		log:    log,
		config: cfg,
		policy: loan.Policy{
			BaseRate:        cfg.BaseRate,
			StepRate:        cfg.StepRate,
			MinInstallments: cfg.MinInstallments,
			MaxInstallments: cfg.MaxInstallments,
			Scale:           cfg.MoneyScale,
			Rounding:        money.RoundHalfUp,
		},
		recon:   &ledger.Reconstructor{Epsilon: cfg.LedgerEpsilon},
		alerts:  alerts,
		reveals: make(map[int64]*card.Manager),
	}
}

// SetBaseRate swaps the pricing base rate, e.g. after a reference-rate
// refresh. Quotes already returned are unaffected.
func (s *Service) SetBaseRate(rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy.BaseRate = rate
	s.log.Infof("Loan base rate set to %s%%", rate)
}

func (s *Service) pricingPolicy() loan.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// Account returns the authenticated user's account.
func (s *Service) Account(ctx context.Context) (*models.Account, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.FindAccountByUserID(ctx, userID)
}

// Statement returns the raw ledger for the authenticated user's account,
// newest first as the log delivers it.
func (s *Service) Statement(ctx context.Context) ([]models.TransactionEntry, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStatement(ctx, account.ID)
}

// Dashboard is the derived state behind the account overview screen.
type Dashboard struct {
	Account        *models.Account        `json:"account"`
	Series         []ledger.Point         `json:"series"`
	CategoryTotals map[string]money.Money `json:"category_totals"`
	Flows          models.FlowTotals      `json:"flows"`
	Summary        models.NetWorthSummary `json:"summary"`
}

// Dashboard reconstructs the account's balance / net-worth series, category
// spending and flow totals from the statement and the active loan set.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListStatement(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	loans, err := s.repo.ListLoans(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	totalDebt := loan.TotalDebt(loans)
	result, err := s.recon.Reconstruct(entries, account.Balance, totalDebt)
	if err != nil {
		var inc *ledger.InconsistencyError
		if errors.As(err, &inc) {
			s.log.WithFields(logrus.Fields{
				"account_id": inc.AccountID,
				"entry_id":   inc.EntryID,
			}).Error("Ledger inconsistency, dashboard suppressed")
		}
		return nil, err
	}

	return &Dashboard{
		Account:        account,
		Series:         result.Series,
		CategoryTotals: result.CategoryTotals,
		Flows:          ledger.SumFlows(entries),
		Summary: models.NetWorthSummary{
			Balance:   account.Balance,
			TotalDebt: totalDebt,
			NetWorth:  account.Balance.Sub(totalDebt),
		},
	}, nil
}

// Deposit commits a deposit for the authenticated user.
func (s *Service) Deposit(ctx context.Context, amount money.Money, category string) (*models.TransactionEntry, error) {
	if category == "" {
		category = "Depósito"
	}
	return s.commit(ctx, amount, category, s.repo.Deposit)
}

// Withdraw commits a withdrawal for the authenticated user.
func (s *Service) Withdraw(ctx context.Context, amount money.Money, category string) (*models.TransactionEntry, error) {
	if category == "" {
		category = "Outros"
	}
	return s.commit(ctx, amount, category, s.repo.Withdraw)
}

func (s *Service) commit(ctx context.Context, amount money.Money, category string,
	op func(context.Context, int64, money.Money, string) (*models.TransactionEntry, error)) (*models.TransactionEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := op(ctx, account.ID, amount, category)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Committed %s of %s on account %d", entry.Type, amount, account.ID)
	return entry, nil
}

// Transfer moves money from the authenticated user's account to another
// account by number.
func (s *Service) Transfer(ctx context.Context, toNumber string, amount money.Money, category string) (*models.TransactionEntry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if category == "" {
		category = "Transferência"
	}
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.Transfer(ctx, account.ID, toNumber, amount, category)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Transferred %s from account %d to %s", amount, account.ID, toNumber)
	return entry, nil
}

// QuoteLoan prices a loan against the account's credit limit without
// committing anything.
func (s *Service) QuoteLoan(ctx context.Context, principal money.Money, installments int) (loan.Quote, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return loan.Quote{}, err
	}
	return s.pricingPolicy().PriceWithinLimit(principal, account.CreditLimit, installments)
}

// RequestLoan prices a loan and, if it fits the credit limit, commits the
// loan and its disbursement entry. Approval beyond the limit gate is an
// external decision that has already happened by the time this is called.
func (s *Service) RequestLoan(ctx context.Context, principal money.Money, installments int) (*models.Loan, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricingPolicy().PriceWithinLimit(principal, account.CreditLimit, installments)
	if err != nil {
		return nil, err
	}
	l, err := s.repo.CreateLoan(ctx, account.ID, quote, ledger.LoanDisbursementCategory)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Loan %d created on account %d: %s in %d installments of %s",
		l.ID, account.ID, l.TotalToPay, l.Installments, l.InstallmentAmount)
	return l, nil
}

// ListLoans returns the authenticated user's loans.
func (s *Service) ListLoans(ctx context.Context) ([]models.Loan, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLoans(ctx, account.ID)
}

// Card returns the user's card with number and expiry decrypted for the
// response. Secret fields stay encrypted.
func (s *Service) Card(ctx context.Context) (*models.Card, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindCardByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return s.decryptCard(c)
}

// RequestCard issues a card if the account qualifies: minimum score and
// minimum transacted volume, with the limit set to the larger of the credit
// limit and 20% of total movement.
func (s *Service) RequestCard(ctx context.Context) (*models.Card, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.FindCardByAccountID(ctx, account.ID); err == nil {
		return s.decryptCard(existing)
	} else if !errors.Is(err, repository.ErrCardNotFound) {
		return nil, err
	}

	if account.Score < minCardScore {
		return nil, fmt.Errorf("%w: score %d below %d", ErrCardNotEligible, account.Score, minCardScore)
	}
	entries, err := s.repo.ListStatement(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	movement := money.Zero()
	for _, e := range entries {
		movement = movement.Add(e.Amount)
	}
	if movement.Cmp(minCardMovement) < 0 {
		return nil, fmt.Errorf("%w: movement %s below %s", ErrCardNotEligible, movement, minCardMovement)
	}

	limit := account.CreditLimit
	movementBased := money.Materialize(
		movement.Decimal().Mul(decimal.NewFromFloat(0.20)), s.config.MoneyScale, money.RoundHalfUp)
	if movementBased.Cmp(limit) > 0 {
		limit = movementBased
	}

	number, err := utils.GenerateCardNumber("400000", 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card number: %w", err)
	}
	expiry := utils.GenerateExpiryDate()
	cvv := utils.GenerateCVV()

	encryptedNumber, err := utils.Encrypt(number, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt card number: %w", err)
	}
	encryptedExpiry, err := utils.Encrypt(expiry, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt expiry date: %w", err)
	}
	encryptedCVV, err := utils.Encrypt(cvv, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt cvv: %w", err)
	}
	cvvHash, err := bcrypt.GenerateFromPassword([]byte(cvv), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cvv: %w", err)
	}

	c := &models.Card{
		AccountID:  account.ID,
		Number:     encryptedNumber,
		ExpiryDate: encryptedExpiry,
		Limit:      limit,
		Status:     models.CardActive,
		CVVCipher:  encryptedCVV,
		CVVHash:    string(cvvHash),
		HMAC:       utils.GenerateHMAC(number, expiry, cvv, s.config.HMACSecret),
	}
	if err := s.repo.CreateCard(ctx, c); err != nil {
		return nil, err
	}

	c.Number = number
	c.ExpiryDate = expiry
	s.log.Infof("Card %d issued for account %d with limit %s", c.ID, account.ID, limit)
	return c, nil
}

// ToggleCard flips the card's block/unblock state and persists it.
func (s *Service) ToggleCard(ctx context.Context) (*models.Card, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindCardByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	c.Status = card.Toggle(c.Status)
	if err := s.repo.UpdateCardStatus(ctx, c.ID, c.Status); err != nil {
		return nil, err
	}
	s.log.Infof("Card %d toggled to %s", c.ID, c.Status)
	return s.decryptCard(c)
}

// RevealCVV opens (or dismisses) the card's time-boxed CVV disclosure. A nil
// reveal with nil error means an active reveal was dismissed.
func (s *Service) RevealCVV(ctx context.Context) (*card.Reveal, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindCardByAccountID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return s.revealManager(c.ID).Reveal(ctx, c.ID)
}

func (s *Service) revealManager(cardID int64) *card.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.reveals[cardID]
	if !ok {
		m = card.NewManager(&cvvStore{repo: s.repo, key: s.config.EncryptionKey}, s.config.RevealWindow)
		s.reveals[cardID] = m
	}
	return m
}

func (s *Service) decryptCard(c *models.Card) (*models.Card, error) {
	number, err := utils.Decrypt(c.Number, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt card number: %w", err)
	}
	expiry, err := utils.Decrypt(c.ExpiryDate, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt expiry date: %w", err)
	}
	out := *c
	out.Number = number
	out.ExpiryDate = expiry
	return &out, nil
}

// cvvStore is the secure-store adapter behind the reveal window: the CVV is
// held encrypted at rest and decrypted only on demand.
type cvvStore struct {
	repo *repository.Repository
	key  []byte
}

func (s *cvvStore) FetchCVV(ctx context.Context, cardID int64) (string, error) {
	cipher, err := s.repo.GetCardCVVCipher(ctx, cardID)
	if err != nil {
		return "", err
	}
	return utils.Decrypt(cipher, s.key)
}

// RunLedgerAudit replays every account's statement and logs balance-chain
// breaks with their identifiers for offline investigation. Inconsistencies
// are alerted to ops but never block the sweep.
func (s *Service) RunLedgerAudit(ctx context.Context) error {
	ids, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return err
	}

	var broken int
	for _, id := range ids {
		account, err := s.repo.FindAccountByID(ctx, id)
		if err != nil {
			s.log.Errorf("Audit skipped account %d: %v", id, err)
			continue
		}
		entries, err := s.repo.ListStatement(ctx, id)
		if err != nil {
			s.log.Errorf("Audit skipped account %d: %v", id, err)
			continue
		}
		loans, err := s.repo.ListLoans(ctx, id)
		if err != nil {
			s.log.Errorf("Audit skipped account %d: %v", id, err)
			continue
		}

		_, err = s.recon.Reconstruct(entries, account.Balance, loan.TotalDebt(loans))
		var inc *ledger.InconsistencyError
		if errors.As(err, &inc) {
			broken++
			s.log.WithFields(logrus.Fields{
				"account_id": inc.AccountID,
				"entry_id":   inc.EntryID,
				"recorded":   inc.Actual.String(),
				"replayed":   inc.Expected.String(),
			}).Error("Ledger audit found inconsistency")
			if s.alerts != nil {
				if alertErr := s.alerts.SendLedgerAlert(inc.AccountID, inc.EntryID,
					inc.Expected.String(), inc.Actual.String()); alertErr != nil {
					s.log.Errorf("Audit alert for account %d not sent: %v", inc.AccountID, alertErr)
				}
			}
		} else if err != nil {
			s.log.Errorf("Audit failed on account %d: %v", id, err)
		}
	}

	s.log.Infof("Ledger audit finished: %d accounts, %d inconsistent", len(ids), broken)
	return nil
}

func userIDFromContext(ctx context.Context) (int64, error) {
	userIDStr, ok := ctx.Value("userID").(string)
	if !ok || userIDStr == "" {
		return 0, fmt.Errorf("user ID not found in context")
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %w", err)
	}
	return userID, nil
}
