package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/importer"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/repository"
	"github.com/josh-kwaku/ledgerbook/internal/service"
	"github.com/josh-kwaku/ledgerbook/internal/service/ledger"
	"github.com/josh-kwaku/ledgerbook/internal/testutil"
)

type services struct {
	db       *sql.DB
	accounts *service.AccountService
	balances *service.BalanceService
	reports  *service.ReportService
	staging  *service.StagingService
	ledger   *ledger.Service
	staged   *repository.StagedRepository
	sources  *repository.ImportSourceRepository
}

func setupServices(t *testing.T) services {
	t.Helper()
	db := testutil.SetupTestDB(t)

	categoryRepo := repository.NewCategoryRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	sourceRepo := repository.NewImportSourceRepository(db)
	stagedRepo := repository.NewStagedRepository(db)

	poster := ledger.NewService(
		repository.NewTransactionRepository(db), journalRepo, accountRepo, events.NopPublisher{}, db,
	)
	return services{
		db:       db,
		accounts: service.NewAccountService(categoryRepo, accountRepo, journalRepo, db),
		balances: service.NewBalanceService(balanceRepo, accountRepo),
		reports:  service.NewReportService(balanceRepo),
		staging:  service.NewStagingService(sourceRepo, stagedRepo, accountRepo, poster, db),
		ledger:   poster,
		staged:   stagedRepo,
		sources:  sourceRepo,
	}
}

func (s services) account(t *testing.T, name string, typ domain.AccountType) *domain.Account {
	t.Helper()
	a, err := s.accounts.CreateAccount(context.Background(), service.CreateAccountRequest{
		Name: name, Type: typ, IsActive: true,
	})
	require.NoError(t, err)
	return a
}

func (s services) post(t *testing.T, date, desc string, dr, cr uuid.UUID, amount string) *domain.Transaction {
	t.Helper()
	txn, err := s.ledger.PostTransaction(context.Background(), ledger.PostRequest{
		Date:        testutil.Date(t, date),
		Description: desc,
		Entries: []domain.EntryInput{
			{AccountID: dr, DebitAmount: testutil.Amount(amount)},
			{AccountID: cr, CreditAmount: testutil.Amount(amount)},
		},
	})
	require.NoError(t, err)
	return txn
}

func TestCreateAccount_CodesPerType(t *testing.T) {
	s := setupServices(t)

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	bank := s.account(t, "Bank", domain.AccountTypeAsset)
	rent := s.account(t, "Rent", domain.AccountTypeExpense)
	loan := s.account(t, "Loan", domain.AccountTypeLiability)
	capital := s.account(t, "Capital", domain.AccountTypeEquity)

	assert.Equal(t, "A-001", cash.Code)
	assert.Equal(t, "A-002", bank.Code)
	assert.Equal(t, "R-001", sales.Code)
	assert.Equal(t, "X-001", rent.Code)
	assert.Equal(t, "L-001", loan.Code)
	assert.Equal(t, "E-001", capital.Code)
}

func TestCreateAccount_ConcurrentCodesUnique(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	const n = 8
	codes := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.accounts.CreateAccount(ctx, service.CreateAccountRequest{
				Name: fmt.Sprintf("Asset %d", i), Type: domain.AccountTypeAsset, IsActive: true,
			})
			errs[i] = err
			if err == nil {
				codes[i] = a.Code
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range n {
		require.NoError(t, errs[i])
		assert.False(t, seen[codes[i]], "duplicate code %s", codes[i])
		seen[codes[i]] = true
	}
	assert.True(t, seen["A-008"])
}

func TestCreateAccount_Validation(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	_, err := s.accounts.CreateAccount(ctx, service.CreateAccountRequest{Name: "Odd", Type: "revenue"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.accounts.CreateAccount(ctx, service.CreateAccountRequest{Name: " ", Type: domain.AccountTypeAsset})
	require.ErrorIs(t, err, domain.ErrValidation)

	missing := uuid.New()
	_, err = s.accounts.CreateAccount(ctx, service.CreateAccountRequest{
		Name: "Orphan", Type: domain.AccountTypeAsset, CategoryID: &missing,
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateAccount_TypeIsImmutable(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()
	cash := s.account(t, "Cash", domain.AccountTypeAsset)

	_, err := s.accounts.UpdateAccount(ctx, cash.ID, service.UpdateAccountRequest{
		Name: "Cash", Type: domain.AccountTypeLiability, IsActive: true,
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := s.accounts.GetAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeAsset, got.Type)
	assert.Equal(t, "A-001", got.Code)

	desc := "petty cash box"
	updated, err := s.accounts.UpdateAccount(ctx, cash.ID, service.UpdateAccountRequest{
		Name: "Petty cash", Type: domain.AccountTypeAsset, Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Petty cash", updated.Name)
	assert.False(t, updated.IsActive)

	_, err = s.accounts.UpdateAccount(ctx, uuid.New(), service.UpdateAccountRequest{Name: "Ghost"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteAccount_BlockedByEntries(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()
	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	spare := s.account(t, "Spare", domain.AccountTypeAsset)
	s.post(t, "2024-01-05", "Sale", cash.ID, sales.ID, "10")

	_, err := s.accounts.DeleteAccount(ctx, cash.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "has journal entries")

	deleted, err := s.accounts.DeleteAccount(ctx, spare.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.accounts.DeleteAccount(ctx, spare.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteCategory_NamesBlockers(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cat, err := s.accounts.CreateCategory(ctx, "Current assets", nil)
	require.NoError(t, err)
	a, err := s.accounts.CreateAccount(ctx, service.CreateAccountRequest{
		CategoryID: &cat.ID, Name: "Cash", Type: domain.AccountTypeAsset, IsActive: true,
	})
	require.NoError(t, err)

	_, err = s.accounts.DeleteCategory(ctx, cat.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	reason, _ := domain.ValidationReason(err)
	assert.Contains(t, reason, "Cash (A-001)")

	_, err = s.accounts.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	_, err = s.accounts.GetAccount(ctx, a.ID)
	require.NoError(t, err)

	_, err = s.accounts.CreateCategory(ctx, "Current assets", nil)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	empty, err := s.accounts.CreateCategory(ctx, "Empty", nil)
	require.NoError(t, err)
	deleted, err := s.accounts.DeleteCategory(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestBalancesAndReports(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	card := s.account(t, "Credit card", domain.AccountTypeLiability)
	capital := s.account(t, "Capital", domain.AccountTypeEquity)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	rent := s.account(t, "Rent", domain.AccountTypeExpense)

	s.post(t, "2023-12-31", "Opening capital", cash.ID, capital.ID, "1000.00")
	s.post(t, "2024-01-05", "Sale", cash.ID, sales.ID, "100.00")
	s.post(t, "2024-01-20", "Rent on card", rent.ID, card.ID, "40.00")
	s.post(t, "2024-02-01", "February sale", cash.ID, sales.ID, "60.00")

	bal, err := s.balances.AccountBalance(ctx, cash.ID, nil)
	require.NoError(t, err)
	assert.True(t, testutil.Amount("1160").Equal(bal))

	asOf := testutil.Date(t, "2024-01-31")
	bal, err = s.balances.AccountBalance(ctx, cash.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, testutil.Amount("1100").Equal(bal))

	again, err := s.balances.AccountBalance(ctx, cash.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, bal.Equal(again))

	salesBal, err := s.balances.AccountBalance(ctx, sales.ID, nil)
	require.NoError(t, err)
	assert.True(t, testutil.Amount("-160").Equal(salesBal))

	_, err = s.balances.AccountBalance(ctx, uuid.New(), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)

	assetType := domain.AccountTypeAsset
	all, err := s.balances.AccountBalances(ctx, repository.BalanceFilter{AsOf: &asOf, Type: &assetType})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.True(t, testutil.Amount("1100").Equal(all[cash.ID]))

	stmt, err := s.reports.IncomeStatement(ctx, testutil.Date(t, "2024-01-01"), testutil.Date(t, "2024-01-31"))
	require.NoError(t, err)
	assert.True(t, testutil.Amount("100").Equal(stmt.TotalIncome))
	assert.True(t, testutil.Amount("40").Equal(stmt.TotalExpenses))
	assert.True(t, testutil.Amount("60").Equal(stmt.NetIncome))

	single, err := s.reports.IncomeStatement(ctx, testutil.Date(t, "2024-01-05"), testutil.Date(t, "2024-01-05"))
	require.NoError(t, err)
	assert.True(t, testutil.Amount("100").Equal(single.TotalIncome), "window bounds are inclusive")

	_, err = s.reports.IncomeStatement(ctx, testutil.Date(t, "2024-02-01"), testutil.Date(t, "2024-01-01"))
	require.ErrorIs(t, err, domain.ErrValidation)

	sheet, err := s.reports.BalanceSheet(ctx, &asOf)
	require.NoError(t, err)
	assert.True(t, testutil.Amount("1100").Equal(sheet.TotalAssets))
	assert.True(t, testutil.Amount("40").Equal(sheet.TotalLiabilities))
	assert.True(t, testutil.Amount("60").Equal(sheet.NetIncome))
	assert.True(t, testutil.Amount("1060").Equal(sheet.TotalEquity))
	assert.True(t, sheet.Balanced())

	full, err := s.reports.BalanceSheet(ctx, nil)
	require.NoError(t, err)
	assert.True(t, full.Balanced())
	assert.True(t, testutil.Amount("1160").Equal(full.TotalAssets))
}

func TestProcessStaged_OutflowScenario(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	supplies := s.account(t, "Supplies", domain.AccountTypeExpense)
	src := testutil.SeedImportSource(t, s.db, "Manual", domain.ImportSourceCSV, "preset: generic")

	st, err := s.staging.Stage(ctx, domain.StageRequest{
		SourceID:    src.ID,
		Date:        testutil.Date(t, "2024-05-02"),
		Description: "Printer paper",
		Amount:      testutil.Amount("-25.00"),
		AccountID:   &cash.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusPending, st.Status)

	txn, err := s.staging.ProcessStaged(ctx, st.ID, supplies.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Printer paper", txn.Description)
	require.NotNil(t, txn.StagedTransactionID)
	assert.Equal(t, st.ID, *txn.StagedTransactionID)

	assert.True(t, testutil.Amount("-25").Equal(testutil.AccountBalance(t, s.db, cash.ID)))
	assert.True(t, testutil.Amount("25").Equal(testutil.AccountBalance(t, s.db, supplies.ID)))

	got, err := s.staged.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusProcessed, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, txn.ID, *got.TransactionID)

	_, err = s.staging.ProcessStaged(ctx, st.ID, supplies.ID, nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "already processed")
	assert.Equal(t, 1, testutil.CountTransactions(t, s.db))

	got, err = s.staged.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusProcessed, got.Status)

	_, err = s.staging.AssignAccount(ctx, st.ID, supplies.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestProcessStaged_FailuresMarkError(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	src := testutil.SeedImportSource(t, s.db, "Manual", domain.ImportSourceCSV, "preset: generic")

	unassigned, err := s.staging.Stage(ctx, domain.StageRequest{
		SourceID: src.ID, Date: testutil.Date(t, "2024-05-03"), Description: "Mystery", Amount: testutil.Amount("10"),
	})
	require.NoError(t, err)

	_, err = s.staging.ProcessStaged(ctx, unassigned.ID, sales.ID, nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	got, err := s.staged.GetByID(ctx, unassigned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no account assigned")

	_, err = s.staging.ProcessStaged(ctx, unassigned.ID, cash.ID, nil)
	require.Error(t, err)

	_, err = s.staging.AssignAccount(ctx, unassigned.ID, cash.ID)
	require.NoError(t, err)

	_, err = s.staging.ProcessStaged(ctx, unassigned.ID, uuid.New(), nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
	got, err = s.staged.GetByID(ctx, unassigned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusError, got.Status)
	assert.Equal(t, 0, testutil.CountTransactions(t, s.db))

	txn, err := s.staging.ProcessStaged(ctx, unassigned.ID, sales.ID, nil)
	require.NoError(t, err, "an errored record can be retried")
	assert.NotEmpty(t, txn.ReferenceNumber)

	_, err = s.staging.ProcessStaged(ctx, uuid.New(), sales.ID, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessStaged_CancelledRequestStillMarksError(t *testing.T) {
	s := setupServices(t)

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	src := testutil.SeedImportSource(t, s.db, "Manual", domain.ImportSourceCSV, "preset: generic")

	st, err := s.staging.Stage(context.Background(), domain.StageRequest{
		SourceID: src.ID, Date: testutil.Date(t, "2024-05-04"), Description: "Dropped",
		Amount: testutil.Amount("12"), AccountID: &cash.ID,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.staging.ProcessStaged(ctx, st.ID, sales.ID, nil)
	require.ErrorIs(t, err, domain.ErrStorage)

	got, err := s.staged.GetByID(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StagedStatusError, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "storage failure while posting", *got.ErrorMessage)
	assert.Equal(t, 0, testutil.CountTransactions(t, s.db))

	result := s.staging.BulkProcess(ctx, []uuid.UUID{st.ID}, sales.ID, nil)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "storage failure while posting", result.Failed[0].Error)
	assert.NotContains(t, result.Failed[0].Error, "context canceled")
}

func TestBulkProcessAndDelete(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cash := s.account(t, "Cash", domain.AccountTypeAsset)
	sales := s.account(t, "Sales", domain.AccountTypeIncome)
	src := testutil.SeedImportSource(t, s.db, "Manual", domain.ImportSourceCSV, "preset: generic")

	stage := func(desc string, account *uuid.UUID) uuid.UUID {
		st, err := s.staging.Stage(ctx, domain.StageRequest{
			SourceID: src.ID, Date: testutil.Date(t, "2024-06-01"), Description: desc,
			Amount: testutil.Amount("15"), AccountID: account,
		})
		require.NoError(t, err)
		return st.ID
	}
	ok1 := stage("one", &cash.ID)
	bad := stage("two", nil)
	ok2 := stage("three", &cash.ID)
	missing := uuid.New()

	result := s.staging.BulkProcess(ctx, []uuid.UUID{ok1, bad, ok2, missing}, sales.ID, nil)
	assert.Len(t, result.Processed, 2)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, bad, result.Failed[0].StagedID)
	assert.Equal(t, "staged transaction has no account assigned", result.Failed[0].Error)
	assert.Equal(t, missing, result.Failed[1].StagedID)
	assert.True(t, testutil.Amount("30").Equal(testutil.AccountBalance(t, s.db, cash.ID)))

	n, err := s.staging.BulkDelete(ctx, []uuid.UUID{ok1, bad, ok2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "processed records are kept")

	left, err := s.staging.ListStaged(ctx, domain.StagedFilter{SourceID: &src.ID})
	require.NoError(t, err)
	assert.Len(t, left, 2)
	for _, st := range left {
		assert.Equal(t, domain.StagedStatusProcessed, st.Status)
	}
}

func TestStage_DuplicatesAndSources(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	_, err := s.staging.CreateImportSource(ctx, service.ImportSourceRequest{
		Name: "Bad", Type: domain.ImportSourceCSV, Config: "preset: nope", IsActive: true,
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	src, err := s.staging.CreateImportSource(ctx, service.ImportSourceRequest{
		Name: "Bank CSV", Type: domain.ImportSourceCSV, Config: "preset: generic", IsActive: true,
	})
	require.NoError(t, err)

	ext := "row-1"
	req := domain.StageRequest{
		SourceID: src.ID, Date: testutil.Date(t, "2024-01-01"), Description: "x",
		Amount: testutil.Amount("1"), ExternalID: &ext,
	}
	_, err = s.staging.Stage(ctx, req)
	require.NoError(t, err)
	_, err = s.staging.Stage(ctx, req)
	require.ErrorIs(t, err, domain.ErrDuplicate)

	req.SourceID = uuid.New()
	_, err = s.staging.Stage(ctx, req)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestImportCSV(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()
	src := testutil.SeedImportSource(t, s.db, "Bank CSV", domain.ImportSourceCSV, "preset: generic")

	file := "date,description,amount\n2024-03-01,Coffee,-3.20\n2024-03-02,Refund,12.00\n"
	res, err := s.staging.ImportCSV(ctx, src.ID, strings.NewReader(file))
	require.NoError(t, err)
	assert.Len(t, res.Staged, 2)
	assert.Zero(t, res.Duplicates)

	res, err = s.staging.ImportCSV(ctx, src.ID, strings.NewReader(file))
	require.NoError(t, err)
	assert.Empty(t, res.Staged)
	assert.Equal(t, 2, res.Duplicates)

	_, err = s.staging.ImportCSV(ctx, src.ID, strings.NewReader("date,description,amount\nbad,Coffee,1\n"))
	require.ErrorIs(t, err, domain.ErrValidation)

	tally := testutil.SeedImportSource(t, s.db, "Form", domain.ImportSourceTallyForm, "")
	_, err = s.staging.ImportCSV(ctx, tally.ID, strings.NewReader(file))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestStageTally_ResolvesAccountByName(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	sub := &importer.TallySubmission{
		ResponseID:  "resp-1",
		Date:        testutil.Date(t, "2024-03-15"),
		Description: "Electricity - March",
		Amount:      testutil.Amount("-82.40"),
		AccountName: "cash",
	}

	_, err := s.staging.StageTally(ctx, sub)
	require.ErrorIs(t, err, domain.ErrValidation, "no tally source configured")

	testutil.SeedImportSource(t, s.db, "Form", domain.ImportSourceTallyForm, "")
	cash := s.account(t, "Cash", domain.AccountTypeAsset)

	st, err := s.staging.StageTally(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, st.AccountID)
	assert.Equal(t, cash.ID, *st.AccountID)
	assert.Equal(t, "resp-1", *st.ExternalID)

	_, err = s.staging.StageTally(ctx, sub)
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

type fakeBank struct {
	txns []importer.BankTransaction
	err  error
	from []*time.Time
	mu   sync.Mutex
}

func (f *fakeBank) FetchTransactions(_ context.Context, from *time.Time) ([]importer.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from = append(f.from, from)
	return f.txns, f.err
}

func TestSyncWorker(t *testing.T) {
	s := setupServices(t)
	ctx := context.Background()

	cfg := func(account string) string {
		return fmt.Sprintf("base_url: http://bank.test\ntoken_url: http://bank.test/oauth/token\nclient_id: id\nclient_secret: s\naccount_id: %s\n", account)
	}
	good := testutil.SeedImportSource(t, s.db, "Main bank", domain.ImportSourceOpenBanking, cfg("main"))
	broken := testutil.SeedImportSource(t, s.db, "Broken bank", domain.ImportSourceOpenBanking, cfg("broken"))

	banks := map[string]*fakeBank{
		"main": {txns: []importer.BankTransaction{
			{ID: "t1", BookingDate: "2024-04-01", Description: "Card", Amount: "-9.99"},
			{ID: "t2", BookingDate: "2024-04-02", Description: "Salary", Amount: "2500.00"},
			{ID: "t3", BookingDate: "not-a-date", Amount: "1"},
		}},
		"broken": {err: errors.New("aggregator unavailable")},
	}
	factory := func(_ context.Context, c importer.OpenBankingConfig) service.BankFetcher {
		return banks[c.AccountID]
	}
	worker := service.NewSyncWorker(s.sources, s.staged, s.staging, factory, logging.FromContext(ctx), time.Hour)

	results, err := worker.SyncAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	byID := map[uuid.UUID]service.SyncResult{}
	for _, r := range results {
		byID[r.SourceID] = r
	}
	assert.Equal(t, 3, byID[good.ID].Fetched)
	assert.Equal(t, 2, byID[good.ID].Staged)
	assert.Equal(t, 1, byID[good.ID].Invalid)
	assert.Contains(t, byID[broken.ID].Error, "aggregator unavailable")
	assert.Nil(t, banks["main"].from[0], "first pass has no cursor")

	res, err := worker.SyncSource(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Staged)
	assert.Equal(t, 2, res.Duplicates)
	require.NotNil(t, banks["main"].from[1])
	assert.Equal(t, "2024-04-02", banks["main"].from[1].Format(domain.DateLayout))

	_, err = worker.SyncSource(ctx, broken.ID)
	require.Error(t, err)

	staged, err := s.staging.ListStaged(ctx, domain.StagedFilter{SourceID: &good.ID})
	require.NoError(t, err)
	assert.Len(t, staged, 2)
}

func TestUserService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	users := service.NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	u, err := users.Register(ctx, service.RegisterRequest{Email: "Ada@Example.com", Name: "Ada", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = users.Register(ctx, service.RegisterRequest{Email: "ada@example.com", Name: "Ada", Password: "correct horse"})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = users.Register(ctx, service.RegisterRequest{Email: "b@example.com", Name: "B", Password: "short"})
	require.ErrorIs(t, err, domain.ErrValidation)

	got, err := users.Authenticate(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)

	stored, err := repository.NewUserRepository(db).GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.WithinDuration(t, *got.LastLoginAt, *stored.LastLoginAt, time.Millisecond)

	_, err = db.ExecContext(ctx, `UPDATE users SET status = 'suspended' WHERE id = $1`, u.ID)
	require.NoError(t, err)
	_, err = users.Authenticate(ctx, "ada@example.com", "correct horse")
	require.ErrorIs(t, err, domain.ErrUnauthorized, "suspended users cannot log in")

	_, err = users.Authenticate(ctx, "ada@example.com", "wrong password")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = users.Authenticate(ctx, "nobody@example.com", "whatever1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
