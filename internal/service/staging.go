package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/ledgerbook/internal/domain"
	"github.com/josh-kwaku/ledgerbook/internal/events"
	"github.com/josh-kwaku/ledgerbook/internal/importer"
	"github.com/josh-kwaku/ledgerbook/internal/logging"
	"github.com/josh-kwaku/ledgerbook/internal/service/ledger"
)

type stagingAccounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByName(ctx context.Context, name string) (*domain.Account, error)
}

// StagingService is the staging reconciler: it owns import sources, accepts
// candidate transactions from import adapters and turns them into posted
// transactions.
type StagingService struct {
	sources  importSourceRepository
	staged   stagedRepository
	accounts stagingAccounts
	poster   poster
	db       *sql.DB
}

func NewStagingService(
	sources importSourceRepository,
	staged stagedRepository,
	accounts stagingAccounts,
	poster poster,
	db *sql.DB,
) *StagingService {
	return &StagingService{
		sources:  sources,
		staged:   staged,
		accounts: accounts,
		poster:   poster,
		db:       db,
	}
}

type ImportSourceRequest struct {
	Name     string
	Type     domain.ImportSourceType
	Config   string
	IsActive bool
}

func validateImportSource(req ImportSourceRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return domain.Invalid("name is required")
	}
	if !req.Type.IsValid() {
		return domain.Invalid("invalid import source type %q", req.Type)
	}
	switch req.Type {
	case domain.ImportSourceCSV:
		_, err := importer.ParseCSVConfig(req.Config)
		return err
	case domain.ImportSourceOpenBanking:
		_, err := importer.ParseOpenBankingConfig(req.Config)
		return err
	}
	return nil
}

func (s *StagingService) CreateImportSource(ctx context.Context, req ImportSourceRequest) (*domain.ImportSource, error) {
	if err := validateImportSource(req); err != nil {
		return nil, fmt.Errorf("CreateImportSource: %w", err)
	}
	src := &domain.ImportSource{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		Config:    req.Config,
		IsActive:  req.IsActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("CreateImportSource: %w", err)
	}
	logging.FromContext(ctx).Info("import source created", "source_id", src.ID, "type", src.Type)
	return src, nil
}

func (s *StagingService) GetImportSource(ctx context.Context, id uuid.UUID) (*domain.ImportSource, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetImportSource: %w", err)
	}
	return src, nil
}

func (s *StagingService) ListImportSources(ctx context.Context, activeOnly bool) ([]domain.ImportSource, error) {
	srcs, err := s.sources.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("ListImportSources: %w", err)
	}
	return srcs, nil
}

func (s *StagingService) UpdateImportSource(ctx context.Context, id uuid.UUID, req ImportSourceRequest) (*domain.ImportSource, error) {
	if err := validateImportSource(req); err != nil {
		return nil, fmt.Errorf("UpdateImportSource: %w", err)
	}
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateImportSource: %w", err)
	}
	src.Name = strings.TrimSpace(req.Name)
	src.Type = req.Type
	src.Config = req.Config
	src.IsActive = req.IsActive
	if err := s.sources.Update(ctx, src); err != nil {
		return nil, fmt.Errorf("UpdateImportSource: %w", err)
	}
	return src, nil
}

// Stage records one externally sourced candidate as pending.
func (s *StagingService) Stage(ctx context.Context, req domain.StageRequest) (*domain.StagedTransaction, error) {
	if req.Date.IsZero() {
		return nil, fmt.Errorf("Stage: %w", domain.Invalid("transaction_date is required"))
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("Stage: %w", domain.Invalid("description is required"))
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, fmt.Errorf("Stage: %w", domain.Invalid("amount must have at most two decimal places"))
	}
	if _, err := s.sources.GetByID(ctx, req.SourceID); err != nil {
		return nil, fmt.Errorf("Stage: source: %w", err)
	}
	if req.AccountID != nil {
		if _, err := s.accounts.GetByID(ctx, *req.AccountID); err != nil {
			return nil, fmt.Errorf("Stage: account: %w", err)
		}
	}

	st := &domain.StagedTransaction{
		ID:          uuid.New(),
		SourceID:    req.SourceID,
		ExternalID:  req.ExternalID,
		Date:        req.Date,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		AccountID:   req.AccountID,
		RawData:     req.RawData,
		Status:      domain.StagedStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.staged.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("Stage: %w", err)
	}
	return st, nil
}

func (s *StagingService) ListStaged(ctx context.Context, f domain.StagedFilter) ([]domain.StagedTransaction, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, fmt.Errorf("ListStaged: %w", domain.Invalid("invalid status %q", *f.Status))
	}
	staged, err := s.staged.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListStaged: %w", err)
	}
	return staged, nil
}

func (s *StagingService) AssignAccount(ctx context.Context, stagedID, accountID uuid.UUID) (*domain.StagedTransaction, error) {
	st, err := s.staged.GetByID(ctx, stagedID)
	if err != nil {
		return nil, fmt.Errorf("AssignAccount: %w", err)
	}
	if st.Status == domain.StagedStatusProcessed {
		return nil, fmt.Errorf("AssignAccount: %w", domain.Invalid("staged transaction already processed"))
	}
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("AssignAccount: account: %w", err)
	}
	if err := s.staged.UpdateAccount(ctx, stagedID, accountID); err != nil {
		return nil, fmt.Errorf("AssignAccount: %w", err)
	}
	st.AccountID = &accountID
	return st, nil
}

// ProcessStaged posts a balanced two-line transaction between the staged
// record's account and counterpartID. A failed attempt leaves the record in
// error with the reason; a processed record is never touched again.
func (s *StagingService) ProcessStaged(ctx context.Context, stagedID, counterpartID uuid.UUID, createdBy *uuid.UUID) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	txn, err := s.processWithin(ctx, stagedID, counterpartID, createdBy)
	if err == nil {
		log.Info("staged transaction processed",
			"staged_id", stagedID,
			"transaction_id", txn.ID,
			"reference", txn.ReferenceNumber,
		)
		s.poster.Announce(ctx, events.TransactionPosted, txn)
		return txn, nil
	}

	var skip *processSkip
	if errors.As(err, &skip) {
		return nil, fmt.Errorf("ProcessStaged: %w", skip.err)
	}

	if markErr := s.staged.MarkError(context.WithoutCancel(ctx), stagedID, failureMessage(err)); markErr != nil {
		log.Error("failed to record staged processing error", "staged_id", stagedID, "error", markErr)
	}
	log.Warn("staged transaction failed", "staged_id", stagedID, "error", err)
	return nil, fmt.Errorf("ProcessStaged: %w", err)
}

// processSkip marks failures that must not be recorded on the staged row:
// the row is missing or already processed.
type processSkip struct{ err error }

func (e *processSkip) Error() string { return e.err.Error() }
func (e *processSkip) Unwrap() error { return e.err }

func (s *StagingService) processWithin(ctx context.Context, stagedID, counterpartID uuid.UUID, createdBy *uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageFailure("begin tx", err)
	}
	defer tx.Rollback()

	st, err := s.staged.GetForUpdate(ctx, tx, stagedID)
	if err != nil {
		return nil, &processSkip{err: err}
	}
	if st.Status == domain.StagedStatusProcessed {
		return nil, &processSkip{err: domain.Invalid("staged transaction already processed")}
	}
	if st.AccountID == nil {
		return nil, domain.Invalid("staged transaction has no account assigned")
	}

	entries, err := stagedEntries(st, counterpartID)
	if err != nil {
		return nil, err
	}
	txn, err := s.poster.PostWithin(ctx, tx, ledger.PostRequest{
		Date:                st.Date,
		Description:         st.Description,
		Entries:             entries,
		CreatedBy:           createdBy,
		StagedTransactionID: &st.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.staged.MarkProcessed(ctx, tx, st.ID, txn.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.StorageFailure("commit", err)
	}
	return txn, nil
}

// stagedEntries debits the primary account for inflows and credits it for
// outflows, with the counterpart taking the other side.
func stagedEntries(st *domain.StagedTransaction, counterpartID uuid.UUID) ([]domain.EntryInput, error) {
	if st.Amount.IsZero() {
		return nil, domain.Invalid("staged transaction has a zero amount")
	}
	amount := st.Amount.Abs()
	primary := domain.EntryInput{AccountID: *st.AccountID}
	counter := domain.EntryInput{AccountID: counterpartID}
	if st.Amount.IsPositive() {
		primary.DebitAmount = amount
		counter.CreditAmount = amount
	} else {
		primary.CreditAmount = amount
		counter.DebitAmount = amount
	}
	return []domain.EntryInput{primary, counter}, nil
}

func failureMessage(err error) string {
	if reason, ok := domain.ValidationReason(err); ok {
		return reason
	}
	if errors.Is(err, domain.ErrNotFound) {
		return err.Error()
	}
	return "storage failure while posting"
}

// BulkProcess processes each id on its own; one failure never stops the
// batch.
func (s *StagingService) BulkProcess(ctx context.Context, ids []uuid.UUID, counterpartID uuid.UUID, createdBy *uuid.UUID) domain.BulkResult {
	result := domain.BulkResult{Processed: []domain.Transaction{}, Failed: []domain.BulkFailure{}}
	for _, id := range ids {
		txn, err := s.ProcessStaged(ctx, id, counterpartID, createdBy)
		if err != nil {
			result.Failed = append(result.Failed, domain.BulkFailure{StagedID: id, Error: failureMessage(err)})
			continue
		}
		result.Processed = append(result.Processed, *txn)
	}
	logging.FromContext(ctx).Info("bulk staged processing finished",
		"processed", len(result.Processed),
		"failed", len(result.Failed),
	)
	return result
}

// BulkDelete removes unprocessed records; processed ones are skipped since
// a posted transaction refers to them.
func (s *StagingService) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.staged.DeleteUnprocessed(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("BulkDelete: %w", err)
	}
	logging.FromContext(ctx).Info("staged transactions deleted", "requested", len(ids), "deleted", n)
	return n, nil
}

type ImportResult struct {
	Staged     []domain.StagedTransaction
	Duplicates int
}

// ImportCSV parses a bank export with the source's column mapping and stages
// every row. Parsing is all-or-nothing; rows already staged are skipped.
func (s *StagingService) ImportCSV(ctx context.Context, sourceID uuid.UUID, r io.Reader) (*ImportResult, error) {
	src, err := s.requireActiveSource(ctx, sourceID, domain.ImportSourceCSV)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}
	cfg, err := importer.ParseCSVConfig(src.Config)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}
	reqs, err := importer.NewCSVParser(*cfg).Parse(r)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}

	result, err := s.stageAll(ctx, src.ID, reqs)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}
	logging.FromContext(ctx).Info("csv imported",
		"source_id", src.ID,
		"staged", len(result.Staged),
		"duplicates", result.Duplicates,
	)
	return result, nil
}

// StageTally stages one Tally form submission against the active tally-form
// source. The account named in the form is assigned when it exists.
func (s *StagingService) StageTally(ctx context.Context, sub *importer.TallySubmission) (*domain.StagedTransaction, error) {
	srcs, err := s.sources.ListActiveByType(ctx, domain.ImportSourceTallyForm)
	if err != nil {
		return nil, fmt.Errorf("StageTally: %w", err)
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("StageTally: %w", domain.Invalid("no active tally-form import source configured"))
	}

	var accountID *uuid.UUID
	if sub.AccountName != "" {
		a, err := s.accounts.GetByName(ctx, sub.AccountName)
		switch {
		case err == nil:
			accountID = &a.ID
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("StageTally: %w", err)
		}
	}

	req, err := sub.StageRequest(srcs[0].ID, accountID)
	if err != nil {
		return nil, fmt.Errorf("StageTally: %w", err)
	}
	st, err := s.Stage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("StageTally: %w", err)
	}
	logging.FromContext(ctx).Info("tally submission staged", "staged_id", st.ID, "source_id", st.SourceID)
	return st, nil
}

func (s *StagingService) requireActiveSource(ctx context.Context, id uuid.UUID, want domain.ImportSourceType) (*domain.ImportSource, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src.Type != want {
		return nil, domain.Invalid("import source %s is %s, not %s", src.ID, src.Type, want)
	}
	if !src.IsActive {
		return nil, domain.Invalid("import source %s is inactive", src.ID)
	}
	return src, nil
}

func (s *StagingService) stageAll(ctx context.Context, sourceID uuid.UUID, reqs []domain.StageRequest) (*ImportResult, error) {
	result := &ImportResult{Staged: []domain.StagedTransaction{}}
	for _, req := range reqs {
		req.SourceID = sourceID
		st, err := s.Stage(ctx, req)
		if errors.Is(err, domain.ErrDuplicate) {
			result.Duplicates++
			continue
		}
		if err != nil {
			return result, err
		}
		result.Staged = append(result.Staged, *st)
	}
	return result, nil
}
