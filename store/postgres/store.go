package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/follower"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/internal/entity"
	"github.com/xraph/herald/rule"
	heraldstore "github.com/xraph/herald/store"
	"github.com/xraph/herald/trigger"
)

// compile-time interface check
var _ heraldstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("herald/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: herald/postgres: %w", herald.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Rule Store ====================

func (s *Store) CreateRule(ctx context.Context, r *rule.AutomationRule) error {
	_, err := s.pg.NewInsert(toRuleModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: create rule: %w", err)
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*rule.AutomationRule, error) {
	m := new(ruleModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrRuleNotFound
		}
		return nil, fmt.Errorf("herald/postgres: get rule: %w", err)
	}
	return fromRuleModel(m)
}

func (s *Store) UpdateRule(ctx context.Context, r *rule.AutomationRule) error {
	m := toRuleModel(r)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: update rule: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	res, err := s.pg.NewDelete((*ruleModel)(nil)).
		Where("id = $1", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: delete rule: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) ListRules(ctx context.Context, ownerUserID string, opts rule.ListOpts) ([]*rule.AutomationRule, error) {
	var models []ruleModel
	q := s.pg.NewSelect(&models).Where("owner_user_id = $1", ownerUserID)
	if opts.Active != nil {
		q = q.Where("active = $2", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/postgres: list rules: %w", err)
	}
	return fromRuleModels(models)
}

func (s *Store) SetActive(ctx context.Context, ruleID id.ID, active bool) error {
	res, err := s.pg.NewUpdate((*ruleModel)(nil)).
		Set("active = $1", active).
		Set("updated_at = $2", time.Now().UTC()).
		Where("id = $3", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: set rule active: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) FindActiveRules(ctx context.Context, f rule.Filter) ([]*rule.AutomationRule, error) {
	var models []ruleModel
	q := s.pg.NewSelect(&models).Where("active = true")

	argIdx := 0
	if f.OwnerAccountExternalID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf(
			"owner_user_id IN (SELECT owner_user_id FROM herald_accounts WHERE external_account_id = $%d)", argIdx),
			f.OwnerAccountExternalID)
	}
	if f.OwnerUserID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("owner_user_id = $%d", argIdx), f.OwnerUserID)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/postgres: find active rules: %w", err)
	}
	return fromRuleModels(models)
}

func fromRuleModels(models []ruleModel) ([]*rule.AutomationRule, error) {
	result := make([]*rule.AutomationRule, len(models))
	for i := range models {
		r, err := fromRuleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) UpsertAccount(ctx context.Context, a *account.ConnectedAccount) error {
	taken, err := s.pg.NewSelect((*accountModel)(nil)).
		Where("external_account_id = $1", a.ExternalAccountID).
		Where("owner_user_id <> $2", a.OwnerUserID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: upsert account: %w", err)
	}
	if taken > 0 {
		return herald.ErrAccountTaken
	}

	if a.ID.IsNil() {
		a.ID = id.NewAccountID()
	}
	if a.CreatedAt.IsZero() {
		a.Entity = entity.New()
	}
	a.UpdatedAt = time.Now().UTC()

	_, err = s.pg.NewInsert(toAccountModel(a)).
		OnConflict("(owner_user_id) DO UPDATE").
		Set("external_account_id = EXCLUDED.external_account_id").
		Set("username = EXCLUDED.username").
		Set("access_token = EXCLUDED.access_token").
		Set("capability_scopes = EXCLUDED.capability_scopes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: upsert account: %w", err)
	}

	// Report the persisted identity back to the caller.
	stored, err := s.FindAccountByOwner(ctx, a.OwnerUserID)
	if err != nil {
		return err
	}
	a.ID = stored.ID
	a.CreatedAt = stored.CreatedAt
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.ID) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, "id = $1", accountID.String())
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerUserID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, "owner_user_id = $1", ownerUserID)
}

func (s *Store) FindAccountByExternalID(ctx context.Context, externalAccountID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, "external_account_id = $1", externalAccountID)
}

func (s *Store) findAccount(ctx context.Context, where string, arg any) (*account.ConnectedAccount, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).Where(where, arg).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrAccountNotFound
		}
		return nil, fmt.Errorf("herald/postgres: find account: %w", err)
	}
	return fromAccountModel(m)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.ID) error {
	res, err := s.pg.NewDelete((*accountModel)(nil)).
		Where("id = $1", accountID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: delete account: %w", err)
	}
	return expectRows(res, herald.ErrAccountNotFound)
}

// ==================== Follower Store ====================

func newFollowerModel(owner, actor string) *followerModel {
	now := time.Now().UTC()
	return &followerModel{
		ID:          id.NewFollowerID().String(),
		OwnerUserID: owner,
		ActorID:     actor,
		Trust:       string(follower.StateUnknown),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Store) RecordFollow(ctx context.Context, f *follower.Follower) error {
	m := newFollowerModel(f.OwnerUserID, f.ActorID)
	m.Username = f.Username
	followed := time.Now().UTC()
	if f.FollowedAt != nil {
		followed = f.FollowedAt.UTC()
	}
	m.FollowedAt = &followed

	_, err := s.pg.NewInsert(m).
		OnConflict("(owner_user_id, actor_id) DO UPDATE").
		Set("followed_at = EXCLUDED.followed_at").
		Set("username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE herald_followers.username END").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: record follow: %w", err)
	}
	return nil
}

func (s *Store) GetFollower(ctx context.Context, ownerUserID, actorID string) (*follower.Follower, error) {
	m := new(followerModel)
	err := s.pg.NewSelect(m).
		Where("owner_user_id = $1", ownerUserID).
		Where("actor_id = $2", actorID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrFollowerNotFound
		}
		return nil, fmt.Errorf("herald/postgres: get follower: %w", err)
	}
	return fromFollowerModel(m)
}

func (s *Store) MarkCommented(ctx context.Context, ownerUserID, actorID string, at time.Time) error {
	m := newFollowerModel(ownerUserID, actorID)
	commented := at.UTC()
	m.CommentedAt = &commented

	_, err := s.pg.NewInsert(m).
		OnConflict("(owner_user_id, actor_id) DO UPDATE").
		Set("commented_at = COALESCE(herald_followers.commented_at, EXCLUDED.commented_at)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: mark commented: %w", err)
	}
	return nil
}

func (s *Store) AdvanceTrust(ctx context.Context, ownerUserID, actorID string) (follower.State, error) {
	// Single upsert statement so concurrent comments observe distinct steps.
	var models []followerModel
	err := s.pg.NewRaw(`
		INSERT INTO herald_followers (id, owner_user_id, actor_id, trust, created_at, updated_at)
		VALUES ($1, $2, $3, 'first_commenter', NOW(), NOW())
		ON CONFLICT (owner_user_id, actor_id) DO UPDATE
		SET trust = CASE
				WHEN herald_followers.trust IN ('first_commenter', 'trusted') THEN 'trusted'
				ELSE 'first_commenter'
			END,
			updated_at = NOW()
		RETURNING *
	`, id.NewFollowerID().String(), ownerUserID, actorID).Scan(ctx, &models)
	if err != nil {
		return "", fmt.Errorf("herald/postgres: advance trust: %w", err)
	}
	if len(models) == 0 {
		return "", fmt.Errorf("herald/postgres: advance trust: no row returned")
	}
	return follower.State(models[0].Trust), nil
}

// ==================== Trigger Store ====================

func (s *Store) ClaimTrigger(ctx context.Context, c *trigger.Claim) error {
	res, err := s.pg.NewInsert(toClaimModel(c)).
		OnConflict("(key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: claim trigger: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return herald.ErrDuplicateTrigger
	}
	return nil
}

func (s *Store) ReleaseClaim(ctx context.Context, key string) error {
	_, err := s.pg.NewDelete((*claimModel)(nil)).
		Where("key = $1", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: release claim: %w", err)
	}
	return nil
}

func (s *Store) PurgeClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*claimModel)(nil)).
		Where("claimed_at < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/postgres: purge claims: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateTriggerLog(ctx context.Context, l *trigger.TriggerLog) error {
	_, err := s.pg.NewInsert(toTriggerLogModel(l)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: create trigger log: %w", err)
	}
	return nil
}

func (s *Store) HasRecentTrigger(ctx context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error) {
	count, err := s.pg.NewSelect((*triggerLogModel)(nil)).
		Where("automation_id = $1", automationID.String()).
		Where("actor_id = $2", actorID).
		Where("trigger_text = $3", text).
		Where("triggered_at >= $4", since).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("herald/postgres: recent trigger: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListTriggerLogs(ctx context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	var models []triggerLogModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.AutomationID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("automation_id = $%d", argIdx), opts.AutomationID.String())
	}
	if opts.ActorID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("actor_id = $%d", argIdx), opts.ActorID)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("triggered_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("triggered_at <= $%d", argIdx), *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("triggered_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/postgres: list trigger logs: %w", err)
	}

	result := make([]*trigger.TriggerLog, len(models))
	for i := range models {
		l, err := fromTriggerLogModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

func (s *Store) CountTriggerLogs(ctx context.Context, opts trigger.ListOpts) (int64, error) {
	q := s.pg.NewSelect((*triggerLogModel)(nil))

	argIdx := 0
	if opts.AutomationID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("automation_id = $%d", argIdx), opts.AutomationID.String())
	}
	if opts.ActorID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("actor_id = $%d", argIdx), opts.ActorID)
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("triggered_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("triggered_at <= $%d", argIdx), *opts.To)
	}
	return q.Count(ctx)
}

// ==================== Failure Store ====================

func (s *Store) PushFailure(ctx context.Context, f *failure.Failure) error {
	_, err := s.pg.NewInsert(toFailureModel(f)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/postgres: push failure: %w", err)
	}
	return nil
}

func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Failure, error) {
	m := new(failureModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", failureID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrFailureNotFound
		}
		return nil, fmt.Errorf("herald/postgres: get failure: %w", err)
	}
	return fromFailureModel(m)
}

func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Failure, error) {
	var models []failureModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.OwnerUserID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("owner_user_id = $%d", argIdx), opts.OwnerUserID)
	}
	if opts.AutomationID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("automation_id = $%d", argIdx), opts.AutomationID.String())
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at <= $%d", argIdx), *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/postgres: list failures: %w", err)
	}

	result := make([]*failure.Failure, len(models))
	for i := range models {
		f, err := fromFailureModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	return s.pg.NewSelect((*failureModel)(nil)).Count(ctx)
}

func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*failureModel)(nil)).
		Where("failed_at < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/postgres: purge failures: %w", err)
	}
	return res.RowsAffected()
}

// rowsAffecter is satisfied by sql.Result.
type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// expectRows maps a zero-row write to notFound.
func expectRows(res rowsAffecter, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
