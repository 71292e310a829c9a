package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/pooled-funds/internal/contracts"
	"github.com/rxtech-lab/pooled-funds/internal/models"
	"github.com/rxtech-lab/pooled-funds/internal/utils"
)

const (
	MinStartLead    = 5 * time.Minute
	MinPoolDuration = 30 * time.Minute
	MaxPoolDuration = 30 * 24 * time.Hour
)

var (
	// ErrPoolIDNotFound means the creation transaction was mined but emitted no PoolCreated event.
	// The draft is kept so it can be recovered by hand.
	ErrPoolIDNotFound     = errors.New("pool id not found in creation receipt")
	ErrCreationInProgress = errors.New("pool creation already in progress")
)

// CreatePoolForm is the input of a pool creation. Price is in whole token units.
type CreatePoolForm struct {
	Name               string    `json:"name" validate:"required,max=100"`
	Description        string    `json:"description" validate:"required"`
	BannerImage        string    `json:"banner_image" validate:"required,url"`
	Price              string    `json:"price" validate:"required,numeric"`
	SoftCap            uint      `json:"soft_cap" validate:"required,gt=0"`
	StartTime          time.Time `json:"start_time" validate:"required"`
	EndTime            time.Time `json:"end_time" validate:"required"`
	TermsURL           string    `json:"terms_url,omitempty" validate:"omitempty,url"`
	RequiredAcceptance bool      `json:"required_acceptance"`
	// TokenAddress overrides the configured deposit token
	TokenAddress string `json:"token_address,omitempty" validate:"omitempty,eth_addr"`
}

// ValidationError carries one message per rejected form field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid pool form: " + strings.Join(parts, "; ")
}

// CreationFailedError is returned when the creation transaction did not go through.
// The draft still exists; the caller either retries or cancels it.
type CreationFailedError struct {
	DraftID string
	Err     error
}

func (e *CreationFailedError) Error() string {
	return fmt.Sprintf("pool creation failed for draft %s: %v", e.DraftID, e.Err)
}

func (e *CreationFailedError) Unwrap() error {
	return e.Err
}

type CreationResult struct {
	Pool        *models.Pool
	OnchainID   uint64
	Redirect    string
	Transaction *ExecutionResult
}

type AttemptState string

const (
	AttemptNone      AttemptState = "none"
	AttemptPending   AttemptState = "pending"
	AttemptConfirmed AttemptState = "confirmed"
	AttemptFailed    AttemptState = "failed"
)

type PoolCreationConfig struct {
	Contract      common.Address
	ChainID       uint
	DefaultToken  common.Address
	TokenDecimals uint8
}

type PoolCreationService interface {
	Validate(form CreatePoolForm) error
	// Create stores a draft and submits it. On a failed submission the error is a *CreationFailedError.
	Create(ctx context.Context, form CreatePoolForm) (*CreationResult, error)
	// Retry resubmits a draft, or resumes waiting on its last transaction when one is outstanding
	Retry(ctx context.Context, draftID string) (*CreationResult, error)
	// Cancel deletes a draft that has not been confirmed on-chain
	Cancel(ctx context.Context, draftID string) error
	Attempt(draftID string) AttemptState
}

type poolCreationService struct {
	pools    PoolService
	executor TransactionExecutor
	cache    ReadCache
	config   PoolCreationConfig
	validate *validator.Validate
	now      func() time.Time

	mu       sync.Mutex
	attempts map[string]AttemptState
}

func NewPoolCreationService(pools PoolService, executor TransactionExecutor, cache ReadCache, config PoolCreationConfig) PoolCreationService {
	s := &poolCreationService{
		pools:    pools,
		executor: executor,
		cache:    cache,
		config:   config,
		now:      time.Now,
		attempts: make(map[string]AttemptState),
	}
	s.validate = validator.New()
	s.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	s.validate.RegisterStructValidation(s.validateSchedule, CreatePoolForm{})
	return s
}

func (s *poolCreationService) validateSchedule(sl validator.StructLevel) {
	form := sl.Current().Interface().(CreatePoolForm)
	if form.StartTime.IsZero() || form.EndTime.IsZero() {
		return
	}

	if form.StartTime.Before(s.now().Add(MinStartLead)) {
		sl.ReportError(form.StartTime, "start_time", "StartTime", "min_lead", "")
	}
	duration := form.EndTime.Sub(form.StartTime)
	if duration < MinPoolDuration {
		sl.ReportError(form.EndTime, "end_time", "EndTime", "min_duration", "")
	} else if duration > MaxPoolDuration {
		sl.ReportError(form.EndTime, "end_time", "EndTime", "max_duration", "")
	}
	if form.TermsURL != "" && !form.RequiredAcceptance {
		sl.ReportError(form.RequiredAcceptance, "required_acceptance", "RequiredAcceptance", "terms_acceptance", "")
	}
}

var fieldMessages = map[string]string{
	"required":         "is required",
	"url":              "must be a valid URL",
	"numeric":          "must be a number",
	"gt":               "must be greater than zero",
	"max":              "is too long",
	"eth_addr":         "must be a valid address",
	"min_lead":         "must be at least 5 minutes in the future",
	"min_duration":     "must be at least 30 minutes after start",
	"max_duration":     "must be at most 30 days after start",
	"terms_acceptance": "must be set when a terms URL is given",
}

func (s *poolCreationService) Validate(form CreatePoolForm) error {
	fields := make(map[string]string)

	err := s.validate.Struct(form)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fe := range validationErrs {
			msg, ok := fieldMessages[fe.Tag()]
			if !ok {
				msg = "is invalid"
			}
			fields[fe.Field()] = msg
		}
	} else if err != nil {
		return err
	}

	if _, ok := fields["price"]; !ok && form.Price != "" {
		if _, err := utils.ToBaseUnits(form.Price, s.config.TokenDecimals); err != nil {
			fields["price"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *poolCreationService) Create(ctx context.Context, form CreatePoolForm) (*CreationResult, error) {
	if err := s.Validate(form); err != nil {
		return nil, err
	}

	token := s.config.DefaultToken
	if form.TokenAddress != "" {
		token = common.HexToAddress(form.TokenAddress)
	}
	if token == (common.Address{}) {
		return nil, errors.New("no deposit token configured")
	}

	pool := &models.Pool{
		ChainID:            s.config.ChainID,
		Name:               form.Name,
		Description:        form.Description,
		BannerImage:        form.BannerImage,
		Price:              form.Price,
		TokenDecimals:      s.config.TokenDecimals,
		SoftCap:            form.SoftCap,
		StartTime:          form.StartTime.UTC(),
		EndTime:            form.EndTime.UTC(),
		TermsURL:           form.TermsURL,
		RequiredAcceptance: form.RequiredAcceptance,
		TokenAddress:       token.Hex(),
		HostAddress:        s.executor.Address().Hex(),
	}
	if err := s.pools.CreateDraft(pool); err != nil {
		return nil, err
	}
	log.Printf("[PoolCreation] created draft %s for %q", pool.ID, pool.Name)

	return s.submit(ctx, pool)
}

func (s *poolCreationService) Retry(ctx context.Context, draftID string) (*CreationResult, error) {
	pool, err := s.pools.GetPool(draftID)
	if err != nil {
		return nil, err
	}
	if pool.IsOnchain() {
		return nil, ErrPoolConfirmed
	}
	return s.submit(ctx, pool)
}

func (s *poolCreationService) Cancel(ctx context.Context, draftID string) error {
	// holding the attempt keeps a concurrent retry out while the draft is checked
	prev, err := s.begin(draftID)
	if err != nil {
		return err
	}

	pool, err := s.pools.GetPool(draftID)
	if err != nil {
		s.setAttempt(draftID, prev)
		return err
	}
	if pool.Status == models.PoolStatusUnconfirmed && pool.CreationTxHash != "" {
		if err := s.checkOutstanding(ctx, pool); err != nil {
			if !errors.Is(err, ErrPoolConfirmed) {
				s.setAttempt(draftID, prev)
			}
			return err
		}
	}

	if err := s.pools.DeleteDraft(draftID); err != nil {
		s.setAttempt(draftID, prev)
		return err
	}

	s.mu.Lock()
	delete(s.attempts, draftID)
	s.mu.Unlock()
	log.Printf("[PoolCreation] cancelled draft %s", draftID)
	return nil
}

// checkOutstanding looks up the last creation transaction of an unconfirmed draft.
// A mined creation is recorded and reported as ErrPoolConfirmed; a pending one
// blocks the cancel. Reverted and dropped transactions leave the draft deletable.
func (s *poolCreationService) checkOutstanding(ctx context.Context, pool *models.Pool) error {
	hash := common.HexToHash(pool.CreationTxHash)
	state, receipt, err := s.executor.TransactionState(ctx, hash)
	if err != nil {
		return err
	}

	switch state {
	case TxPending:
		log.Printf("[PoolCreation] draft %s still has pending transaction %s", pool.ID, hash.Hex())
		return ErrCreationInProgress
	case TxMined:
		if receipt.Status != types.ReceiptStatusSuccessful {
			return nil
		}
		s.setAttempt(pool.ID, AttemptConfirmed)
		tx := &ExecutionResult{
			Record: models.TransactionRecord{
				Type:      models.TransactionTypeCreatePool,
				Hashes:    []string{hash.Hex()},
				Status:    models.TransactionStatusConfirmed,
				Confirmed: true,
			},
			Receipts: []*types.Receipt{receipt},
		}
		if _, err := s.confirm(pool.ID, tx); err != nil {
			log.Printf("[PoolCreation] draft %s was mined before cancel but could not be recorded: %v", pool.ID, err)
		}
		return ErrPoolConfirmed
	}
	return nil
}

func (s *poolCreationService) Attempt(draftID string) AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.attempts[draftID]
	if !ok {
		return AttemptNone
	}
	return state
}

// begin marks an attempt as pending. The previous state is returned so an attempt
// that never reached the wallet can be undone.
func (s *poolCreationService) begin(draftID string) (AttemptState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.attempts[draftID]
	if !ok {
		prev = AttemptNone
	}
	switch prev {
	case AttemptPending:
		return prev, ErrCreationInProgress
	case AttemptConfirmed:
		return prev, ErrPoolConfirmed
	}
	s.attempts[draftID] = AttemptPending
	return prev, nil
}

func (s *poolCreationService) setAttempt(draftID string, state AttemptState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[draftID] = state
}

func (s *poolCreationService) submit(ctx context.Context, pool *models.Pool) (*CreationResult, error) {
	prev, err := s.begin(pool.ID)
	if err != nil {
		return nil, err
	}

	amount, err := utils.ToBaseUnits(pool.Price, pool.TokenDecimals)
	if err != nil {
		s.setAttempt(pool.ID, prev)
		return nil, fmt.Errorf("invalid pool price: %w", err)
	}
	call := contracts.CreatePool{
		Contract:      s.config.Contract,
		TimeStart:     pool.StartTime,
		TimeEnd:       pool.EndTime,
		Name:          pool.Name,
		DepositAmount: amount,
		SoftCap:       uint64(pool.SoftCap),
		Token:         common.HexToAddress(pool.TokenAddress),
	}
	opts := ExecuteOptions{
		Metadata: map[string]string{"pool_id": pool.ID},
		OnSubmitted: func(txHash string) {
			if err := s.pools.MarkUnconfirmed(pool.ID, txHash); err != nil {
				log.Printf("[PoolCreation] failed to store creation hash %s for draft %s: %v", txHash, pool.ID, err)
			}
		},
	}

	var tx *ExecutionResult
	if pool.Status == models.PoolStatusUnconfirmed && pool.CreationTxHash != "" {
		// a previous attempt timed out; its transaction may still be mined
		log.Printf("[PoolCreation] resuming draft %s at %s", pool.ID, pool.CreationTxHash)
		tx, err = s.executor.Await(ctx, call, common.HexToHash(pool.CreationTxHash), opts)
	} else {
		tx, err = s.executor.Execute(ctx, []contracts.Call{call}, opts)
	}

	if err != nil && !errors.Is(err, ErrReconciliationGap) {
		return nil, s.submitFailed(pool.ID, prev, err)
	}
	s.setAttempt(pool.ID, AttemptConfirmed)
	if err != nil {
		return s.hooksFailed(pool, tx, err)
	}

	return s.confirm(pool.ID, tx)
}

func (s *poolCreationService) submitFailed(draftID string, prev AttemptState, err error) error {
	switch {
	case errors.Is(err, ErrTransactionInProgress), errors.Is(err, ErrWalletNotReady):
		// nothing reached the wallet
		s.setAttempt(draftID, prev)
	case errors.Is(err, ErrConfirmationTimeout):
		// the pool stays unconfirmed with its hash; a retry waits on that hash again
		s.setAttempt(draftID, AttemptFailed)
	default:
		s.setAttempt(draftID, AttemptFailed)
		if rbErr := s.pools.RollbackToDraft(draftID); rbErr != nil {
			log.Printf("[PoolCreation] failed to roll back draft %s: %v", draftID, rbErr)
		}
	}
	return &CreationFailedError{DraftID: draftID, Err: err}
}

// confirm decodes the on-chain id from the receipt and records the pool as created.
func (s *poolCreationService) confirm(draftID string, tx *ExecutionResult) (*CreationResult, error) {
	result := &CreationResult{Transaction: tx}

	event, err := s.findPoolCreated(tx)
	if err != nil {
		pool, getErr := s.pools.GetPool(draftID)
		if getErr == nil {
			result.Pool = pool
		}
		log.Printf("[PoolCreation] draft %s confirmed as %s but %v", draftID, tx.Record.LastHash(), err)
		return result, fmt.Errorf("%w: %w", ErrPoolIDNotFound, err)
	}
	result.OnchainID = event.PoolID
	result.Redirect = utils.PoolPath(event.PoolID)

	if err := s.pools.MarkConfirmed(draftID, event.PoolID, tx.Record.LastHash()); err != nil {
		gap := fmt.Errorf("%w: %w", ErrReconciliationGap, err)
		s.recordGap(draftID, tx, gap, models.JSON{"onchain_id": event.PoolID})
		return result, gap
	}
	InvalidatePool(s.cache, draftID)

	pool, err := s.pools.GetPool(draftID)
	if err != nil {
		return result, err
	}
	result.Pool = pool
	log.Printf("[PoolCreation] draft %s confirmed as pool %d", draftID, event.PoolID)
	return result, nil
}

// hooksFailed handles a confirmed creation whose follow-up hooks failed. The pool
// itself is still confirmed when its event can be decoded.
func (s *poolCreationService) hooksFailed(pool *models.Pool, tx *ExecutionResult, hookErr error) (*CreationResult, error) {
	result, err := s.confirm(pool.ID, tx)
	if err != nil {
		return result, err
	}
	s.recordGap(pool.ID, tx, hookErr, nil)
	return result, hookErr
}

func (s *poolCreationService) findPoolCreated(tx *ExecutionResult) (*contracts.PoolCreatedEvent, error) {
	if tx == nil {
		return nil, contracts.ErrPoolCreatedNotFound
	}
	for _, receipt := range tx.Receipts {
		if receipt == nil {
			continue
		}
		event, err := contracts.ParsePoolCreated(receipt.Logs, s.config.Contract)
		if errors.Is(err, contracts.ErrPoolCreatedNotFound) {
			continue
		}
		return event, err
	}
	return nil, contracts.ErrPoolCreatedNotFound
}

func (s *poolCreationService) recordGap(draftID string, tx *ExecutionResult, gap error, details models.JSON) {
	issue := &models.ReconciliationIssue{
		PoolID:  draftID,
		Kind:    models.ReconciliationPoolCreated,
		Error:   gap.Error(),
		Details: details,
	}
	if tx != nil {
		issue.TxHash = tx.Record.LastHash()
	}
	log.Printf("[PoolCreation] reconciliation gap for draft %s: %v", draftID, gap)
	if err := s.pools.RecordIssue(issue); err != nil {
		log.Printf("[PoolCreation] failed to record reconciliation issue for draft %s: %v", draftID, err)
	}
}
