package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ImportSourceType string

const (
	ImportSourceCSV         ImportSourceType = "csv"
	ImportSourceTallyForm   ImportSourceType = "tally-form"
	ImportSourceOpenBanking ImportSourceType = "open-banking"
)

func (t ImportSourceType) IsValid() bool {
	switch t {
	case ImportSourceCSV, ImportSourceTallyForm, ImportSourceOpenBanking:
		return true
	}
	return false
}

type ImportSource struct {
	ID        uuid.UUID
	Name      string
	Type      ImportSourceType
	Config    string
	IsActive  bool
	CreatedAt time.Time
}

type StagedStatus string

const (
	StagedStatusPending   StagedStatus = "pending"
	StagedStatusProcessed StagedStatus = "processed"
	StagedStatusError     StagedStatus = "error"
)

func (s StagedStatus) IsValid() bool {
	switch s {
	case StagedStatusPending, StagedStatusProcessed, StagedStatusError:
		return true
	}
	return false
}

// StagedTransaction is an externally sourced candidate awaiting posting.
// A positive Amount is an inflow to AccountID, a negative one an outflow.
type StagedTransaction struct {
	ID            uuid.UUID
	SourceID      uuid.UUID
	ExternalID    *string
	Date          time.Time
	Description   string
	Amount        decimal.Decimal
	AccountID     *uuid.UUID
	RawData       json.RawMessage
	Status        StagedStatus
	ErrorMessage  *string
	ProcessedAt   *time.Time
	TransactionID *uuid.UUID
	CreatedAt     time.Time
}

// StageRequest is what import adapters hand to the staging reconciler.
type StageRequest struct {
	SourceID    uuid.UUID
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	ExternalID  *string
	AccountID   *uuid.UUID
	RawData     json.RawMessage
}

type StagedFilter struct {
	SourceID  *uuid.UUID
	Status    *StagedStatus
	StartDate *time.Time
	EndDate   *time.Time
}

type BulkFailure struct {
	StagedID uuid.UUID `json:"staged_id"`
	Error    string    `json:"error"`
}

type BulkResult struct {
	Processed []Transaction
	Failed    []BulkFailure
}
