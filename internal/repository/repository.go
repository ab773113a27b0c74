package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/ledger-engine/internal/loan"
	"github.com/Dan9191/ledger-engine/internal/models"
	"github.com/Dan9191/ledger-engine/internal/money"
)

var (
	// ErrAccountNotFound means the account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCardNotFound means no card is linked to the account.
	ErrCardNotFound = errors.New("card not found")
	// ErrInsufficientFunds means the balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount rejects a transfer onto itself.
	ErrSameAccount = errors.New("source and destination are the same account")
)

// Repository provides database operations. It is the narrow query/command
// interface in front of the durable ledger: statements and loans are read
// back as-is, and the commitment methods are the only writers, always
// appending the entry together with the balance move in one transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindAccountByUserID retrieves the account owned by a user.
func (r *Repository) FindAccountByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	return r.scanAccount(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, number, balance, credit_limit, score
		FROM bank.accounts
		WHERE user_id = $1`, userID))
}

// FindAccountByID retrieves an account by its id.
func (r *Repository) FindAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.scanAccount(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, number, balance, credit_limit, score
		FROM bank.accounts
		WHERE id = $1`, id))
}

func (r *Repository) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.UserID, &account.Number,
		&account.Balance, &account.CreditLimit, &account.Score)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// ListAccountIDs returns every account id, for the ledger audit sweep.
func (r *Repository) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM bank.accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStatement returns an account's ledger newest-first, as the external
// log delivers it. Callers needing chronological order re-sort; the
// reconstructor does this itself.
func (r *Repository) ListStatement(ctx context.Context, accountID int64) ([]models.TransactionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, type, category, amount, timestamp, balance_after
		FROM bank.transactions
		WHERE account_id = $1
		ORDER BY timestamp DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement: %w", err)
	}
	defer rows.Close()

	var entries []models.TransactionEntry
	for rows.Next() {
		var e models.TransactionEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Category,
			&e.Amount, &e.Timestamp, &e.BalanceAfter); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListLoans returns an account's loans, newest first.
func (r *Repository) ListLoans(ctx context.Context, accountID int64) ([]models.Loan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, account_id, principal, installments, monthly_rate_percent,
		       installment_amount, total_to_pay, status, created_at
		FROM bank.loans
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Principal, &l.Installments,
			&l.MonthlyRatePercent, &l.InstallmentAmount, &l.TotalToPay,
			&l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// Deposit credits an account and appends the ledger entry atomically.
func (r *Repository) Deposit(ctx context.Context, accountID int64, amount money.Money, category string) (*models.TransactionEntry, error) {
	return r.move(ctx, accountID, amount, models.Deposit, category)
}

// Withdraw debits an account and appends the ledger entry atomically.
func (r *Repository) Withdraw(ctx context.Context, accountID int64, amount money.Money, category string) (*models.TransactionEntry, error) {
	return r.move(ctx, accountID, amount, models.Withdraw, category)
}

func (r *Repository) move(ctx context.Context, accountID int64, amount money.Money, entryType models.EntryType, category string) (*models.TransactionEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if !entryType.IsCredit() && balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}

	newBalance := balance.Add(amount)
	if !entryType.IsCredit() {
		newBalance = balance.Sub(amount)
	}

	entry, err := applyMove(ctx, tx, accountID, amount, newBalance, entryType, category)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return entry, nil
}

// Transfer moves money between two accounts, appending a transfer_out and a
// transfer_in entry. Rows are locked in id order to avoid deadlocks.
func (r *Repository) Transfer(ctx context.Context, fromID int64, toNumber string, amount money.Money, category string) (*models.TransactionEntry, error) {
	var toID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM bank.accounts WHERE number = $1`, toNumber).Scan(&toID)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find destination account: %w", err)
	}
	if toID == fromID {
		return nil, ErrSameAccount
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	balances := make(map[int64]money.Money, 2)
	for _, id := range []int64{first, second} {
		b, err := lockBalance(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		balances[id] = b
	}

	if balances[fromID].Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}

	out, err := applyMove(ctx, tx, fromID, amount, balances[fromID].Sub(amount), models.TransferOut, category)
	if err != nil {
		return nil, err
	}
	if _, err := applyMove(ctx, tx, toID, amount, balances[toID].Add(amount), models.TransferIn, category); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return out, nil
}

// CreateLoan commits a priced loan: the loan row, the balance credit and the
// disbursement entry land in one transaction so the statement and the loan
// set can never disagree.
func (r *Repository) CreateLoan(ctx context.Context, accountID int64, quote loan.Quote, disbursementCategory string) (*models.Loan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	l := &models.Loan{
		AccountID:          accountID,
		Principal:          quote.Principal,
		Installments:       quote.Installments,
		MonthlyRatePercent: quote.MonthlyRatePercent,
		InstallmentAmount:  quote.InstallmentAmount,
		TotalToPay:         quote.TotalToPay,
		Status:             models.LoanActive,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bank.loans (account_id, principal, installments, monthly_rate_percent,
		                        installment_amount, total_to_pay, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING id, created_at`,
		l.AccountID, l.Principal, l.Installments, l.MonthlyRatePercent,
		l.InstallmentAmount, l.TotalToPay, l.Status).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if _, err := applyMove(ctx, tx, accountID, quote.Principal, balance.Add(quote.Principal), models.Deposit, disbursementCategory); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return l, nil
}

// FindCardByAccountID retrieves the card linked to an account, including the
// encrypted secret fields.
func (r *Repository) FindCardByAccountID(ctx context.Context, accountID int64) (*models.Card, error) {
	c := &models.Card{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, number, expiry_date, card_limit, status,
		       cvv_cipher, cvv_hash, hmac, created_at
		FROM bank.cards
		WHERE account_id = $1`, accountID).
		Scan(&c.ID, &c.AccountID, &c.Number, &c.ExpiryDate, &c.Limit,
			&c.Status, &c.CVVCipher, &c.CVVHash, &c.HMAC, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return c, nil
}

// CreateCard stores a newly issued card with its encrypted fields.
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO bank.cards (account_id, number, expiry_date, card_limit, status,
		                        cvv_cipher, cvv_hash, hmac, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		RETURNING id, created_at`,
		card.AccountID, card.Number, card.ExpiryDate, card.Limit, card.Status,
		card.CVVCipher, card.CVVHash, card.HMAC).
		Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// UpdateCardStatus persists a block/unblock toggle.
func (r *Repository) UpdateCardStatus(ctx context.Context, cardID int64, status models.CardStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank.cards SET status = $1 WHERE id = $2`, status, cardID)
	if err != nil {
		return fmt.Errorf("failed to update card status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// GetCardCVVCipher reads the encrypted CVV for the secret store.
func (r *Repository) GetCardCVVCipher(ctx context.Context, cardID int64) (string, error) {
	var cipher string
	err := r.db.QueryRowContext(ctx,
		`SELECT cvv_cipher FROM bank.cards WHERE id = $1`, cardID).Scan(&cipher)
	if err == sql.ErrNoRows {
		return "", ErrCardNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cvv: %w", err)
	}
	return cipher, nil
}

func lockBalance(ctx context.Context, tx *sql.Tx, accountID int64) (money.Money, error) {
	var balance money.Money
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM bank.accounts WHERE id = $1 FOR UPDATE`, accountID).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return money.Zero(), ErrAccountNotFound
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("failed to lock account: %w", err)
	}
	return balance, nil
}

func applyMove(ctx context.Context, tx *sql.Tx, accountID int64, amount, balanceAfter money.Money, entryType models.EntryType, category string) (*models.TransactionEntry, error) {
	if _, err := tx.ExecContext(ctx, `
		UPDATE bank.accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2`, balanceAfter, accountID); err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	entry := &models.TransactionEntry{
		AccountID:    accountID,
		Type:         entryType,
		Category:     category,
		Amount:       amount,
		BalanceAfter: balanceAfter,
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO bank.transactions (account_id, type, category, amount, timestamp, balance_after)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, $5)
		RETURNING id, timestamp`,
		accountID, entryType, category, amount, balanceAfter).
		Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return entry, nil
}
