package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("herald/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: herald/sqlite: %w", herald.ErrMigrationFailed, err)
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
	_, err := s.sdb.NewInsert(toRuleModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: create rule: %w", err)
	}
	return nil
}

func (s *Store) GetRule(ctx context.Context, ruleID id.ID) (*rule.AutomationRule, error) {
	m := new(ruleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", ruleID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrRuleNotFound
		}
		return nil, fmt.Errorf("herald/sqlite: get rule: %w", err)
	}
	return fromRuleModel(m)
}

func (s *Store) UpdateRule(ctx context.Context, r *rule.AutomationRule) error {
	m := toRuleModel(r)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.sdb.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: update rule: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) DeleteRule(ctx context.Context, ruleID id.ID) error {
	res, err := s.sdb.NewDelete((*ruleModel)(nil)).
		Where("id = ?", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: delete rule: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) ListRules(ctx context.Context, ownerUserID string, opts rule.ListOpts) ([]*rule.AutomationRule, error) {
	var models []ruleModel
	q := s.sdb.NewSelect(&models).Where("owner_user_id = ?", ownerUserID)
	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/sqlite: list rules: %w", err)
	}
	return fromRuleModels(models)
}

func (s *Store) SetActive(ctx context.Context, ruleID id.ID, active bool) error {
	res, err := s.sdb.NewUpdate((*ruleModel)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", ruleID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: set rule active: %w", err)
	}
	return expectRows(res, herald.ErrRuleNotFound)
}

func (s *Store) FindActiveRules(ctx context.Context, f rule.Filter) ([]*rule.AutomationRule, error) {
	var models []ruleModel
	q := s.sdb.NewSelect(&models).Where("active = ?", true)

	if f.OwnerAccountExternalID != "" {
		q = q.Where("owner_user_id IN (SELECT owner_user_id FROM herald_accounts WHERE external_account_id = ?)",
			f.OwnerAccountExternalID)
	}
	if f.OwnerUserID != "" {
		q = q.Where("owner_user_id = ?", f.OwnerUserID)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/sqlite: find active rules: %w", err)
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
	taken, err := s.sdb.NewSelect((*accountModel)(nil)).
		Where("external_account_id = ?", a.ExternalAccountID).
		Where("owner_user_id <> ?", a.OwnerUserID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: upsert account: %w", err)
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

	_, err = s.sdb.NewInsert(toAccountModel(a)).
		OnConflict("(owner_user_id) DO UPDATE").
		Set("external_account_id = EXCLUDED.external_account_id").
		Set("username = EXCLUDED.username").
		Set("access_token = EXCLUDED.access_token").
		Set("capability_scopes = EXCLUDED.capability_scopes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: upsert account: %w", err)
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
	return s.findAccount(ctx, "id = ?", accountID.String())
}

func (s *Store) FindAccountByOwner(ctx context.Context, ownerUserID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, "owner_user_id = ?", ownerUserID)
}

func (s *Store) FindAccountByExternalID(ctx context.Context, externalAccountID string) (*account.ConnectedAccount, error) {
	return s.findAccount(ctx, "external_account_id = ?", externalAccountID)
}

func (s *Store) findAccount(ctx context.Context, where string, arg any) (*account.ConnectedAccount, error) {
	m := new(accountModel)
	err := s.sdb.NewSelect(m).Where(where, arg).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrAccountNotFound
		}
		return nil, fmt.Errorf("herald/sqlite: find account: %w", err)
	}
	return fromAccountModel(m)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID id.ID) error {
	res, err := s.sdb.NewDelete((*accountModel)(nil)).
		Where("id = ?", accountID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: delete account: %w", err)
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

	_, err := s.sdb.NewInsert(m).
		OnConflict("(owner_user_id, actor_id) DO UPDATE").
		Set("followed_at = EXCLUDED.followed_at").
		Set("username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE herald_followers.username END").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: record follow: %w", err)
	}
	return nil
}

func (s *Store) GetFollower(ctx context.Context, ownerUserID, actorID string) (*follower.Follower, error) {
	m := new(followerModel)
	err := s.sdb.NewSelect(m).
		Where("owner_user_id = ?", ownerUserID).
		Where("actor_id = ?", actorID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrFollowerNotFound
		}
		return nil, fmt.Errorf("herald/sqlite: get follower: %w", err)
	}
	return fromFollowerModel(m)
}

func (s *Store) MarkCommented(ctx context.Context, ownerUserID, actorID string, at time.Time) error {
	m := newFollowerModel(ownerUserID, actorID)
	commented := at.UTC()
	m.CommentedAt = &commented

	_, err := s.sdb.NewInsert(m).
		OnConflict("(owner_user_id, actor_id) DO UPDATE").
		Set("commented_at = COALESCE(herald_followers.commented_at, EXCLUDED.commented_at)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: mark commented: %w", err)
	}
	return nil
}

func (s *Store) AdvanceTrust(ctx context.Context, ownerUserID, actorID string) (follower.State, error) {
	// SQLite serializes writes, so the upsert observes each step in order.
	now := time.Now().UTC()
	var models []followerModel
	err := s.sdb.NewRaw(`
		INSERT INTO herald_followers (id, owner_user_id, actor_id, trust, created_at, updated_at)
		VALUES (?, ?, ?, 'first_commenter', ?, ?)
		ON CONFLICT (owner_user_id, actor_id) DO UPDATE
		SET trust = CASE
				WHEN herald_followers.trust IN ('first_commenter', 'trusted') THEN 'trusted'
				ELSE 'first_commenter'
			END,
			updated_at = excluded.updated_at
		RETURNING *
	`, id.NewFollowerID().String(), ownerUserID, actorID, now, now).Scan(ctx, &models)
	if err != nil {
		return "", fmt.Errorf("herald/sqlite: advance trust: %w", err)
	}
	if len(models) == 0 {
		return "", fmt.Errorf("herald/sqlite: advance trust: no row returned")
	}
	return follower.State(models[0].Trust), nil
}

// ==================== Trigger Store ====================

func (s *Store) ClaimTrigger(ctx context.Context, c *trigger.Claim) error {
	res, err := s.sdb.NewInsert(toClaimModel(c)).
		OnConflict("(key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: claim trigger: %w", err)
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
	_, err := s.sdb.NewDelete((*claimModel)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: release claim: %w", err)
	}
	return nil
}

func (s *Store) PurgeClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*claimModel)(nil)).
		Where("claimed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/sqlite: purge claims: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateTriggerLog(ctx context.Context, l *trigger.TriggerLog) error {
	_, err := s.sdb.NewInsert(toTriggerLogModel(l)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: create trigger log: %w", err)
	}
	return nil
}

func (s *Store) HasRecentTrigger(ctx context.Context, automationID id.ID, actorID, text string, since time.Time) (bool, error) {
	count, err := s.sdb.NewSelect((*triggerLogModel)(nil)).
		Where("automation_id = ?", automationID.String()).
		Where("actor_id = ?", actorID).
		Where("trigger_text = ?", text).
		Where("triggered_at >= ?", since).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("herald/sqlite: recent trigger: %w", err)
	}
	return count > 0, nil
}

func (s *Store) ListTriggerLogs(ctx context.Context, opts trigger.ListOpts) ([]*trigger.TriggerLog, error) {
	var models []triggerLogModel
	q := s.sdb.NewSelect(&models)

	if opts.AutomationID != nil {
		q = q.Where("automation_id = ?", opts.AutomationID.String())
	}
	if opts.ActorID != "" {
		q = q.Where("actor_id = ?", opts.ActorID)
	}
	if opts.From != nil {
		q = q.Where("triggered_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("triggered_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("triggered_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/sqlite: list trigger logs: %w", err)
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
	q := s.sdb.NewSelect((*triggerLogModel)(nil))

	if opts.AutomationID != nil {
		q = q.Where("automation_id = ?", opts.AutomationID.String())
	}
	if opts.ActorID != "" {
		q = q.Where("actor_id = ?", opts.ActorID)
	}
	if opts.From != nil {
		q = q.Where("triggered_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("triggered_at <= ?", *opts.To)
	}
	return q.Count(ctx)
}

// ==================== Failure Store ====================

func (s *Store) PushFailure(ctx context.Context, f *failure.Failure) error {
	_, err := s.sdb.NewInsert(toFailureModel(f)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("herald/sqlite: push failure: %w", err)
	}
	return nil
}

func (s *Store) GetFailure(ctx context.Context, failureID id.ID) (*failure.Failure, error) {
	m := new(failureModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", failureID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, herald.ErrFailureNotFound
		}
		return nil, fmt.Errorf("herald/sqlite: get failure: %w", err)
	}
	return fromFailureModel(m)
}

func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Failure, error) {
	var models []failureModel
	q := s.sdb.NewSelect(&models)

	if opts.OwnerUserID != "" {
		q = q.Where("owner_user_id = ?", opts.OwnerUserID)
	}
	if opts.AutomationID != nil {
		q = q.Where("automation_id = ?", opts.AutomationID.String())
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("herald/sqlite: list failures: %w", err)
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
	return s.sdb.NewSelect((*failureModel)(nil)).Count(ctx)
}

func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*failureModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("herald/sqlite: purge failures: %w", err)
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
