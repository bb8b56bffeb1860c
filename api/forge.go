package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/herald"
	"github.com/xraph/herald/account"
	"github.com/xraph/herald/failure"
	"github.com/xraph/herald/id"
	"github.com/xraph/herald/rule"
	"github.com/xraph/herald/trigger"
)

// ForgeAPI wires the Forge-style admin handlers together. Webhook ingress
// needs the raw request body for signature checks and is served by Handler.
type ForgeAPI struct {
	herald *herald.Herald
	log    forge.Logger
}

// NewForgeAPI creates a ForgeAPI over a running Herald.
func NewForgeAPI(h *herald.Herald, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		herald: h,
		log:    log,
	}
}

// RegisterRoutes registers all Herald admin API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerRuleRoutes(router)
	a.registerAccountRoutes(router)
	a.registerTriggerLogRoutes(router)
	a.registerFailureRoutes(router)
	a.registerStatsRoutes(router)
}

// ---------------------------------------------------------------------------
// Rule routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerRuleRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("rules"))

	if err := g.POST("/rules", a.createRule,
		forge.WithSummary("Create rule"),
		forge.WithDescription("Creates an automation rule. New rules start inactive."),
		forge.WithOperationID("createRule"),
		forge.WithRequestSchema(CreateRuleForgeRequest{}),
		forge.WithCreatedResponse(rule.AutomationRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createRule route", forge.Error(err))
	}

	if err := g.GET("/rules", a.listRules,
		forge.WithSummary("List rules"),
		forge.WithDescription("Returns an owner's rules, newest first."),
		forge.WithOperationID("listRules"),
		forge.WithRequestSchema(ListRulesForgeRequest{}),
		forge.WithListResponse(rule.AutomationRule{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listRules route", forge.Error(err))
	}

	if err := g.GET("/rules/:ruleId", a.getRule,
		forge.WithSummary("Get rule"),
		forge.WithDescription("Returns a single automation rule."),
		forge.WithOperationID("getRule"),
		forge.WithResponseSchema(http.StatusOK, "Rule details", rule.AutomationRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getRule route", forge.Error(err))
	}

	if err := g.PUT("/rules/:ruleId", a.updateRule,
		forge.WithSummary("Update rule"),
		forge.WithDescription("Replaces the editable fields of a rule."),
		forge.WithOperationID("updateRule"),
		forge.WithRequestSchema(UpdateRuleForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated rule", rule.AutomationRule{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateRule route", forge.Error(err))
	}

	if err := g.DELETE("/rules/:ruleId", a.deleteRule,
		forge.WithSummary("Delete rule"),
		forge.WithDescription("Permanently deletes a rule."),
		forge.WithOperationID("deleteRule"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteRule route", forge.Error(err))
	}

	if err := g.PATCH("/rules/:ruleId/active", a.setRuleActive,
		forge.WithSummary("Toggle rule"),
		forge.WithDescription("Activates or deactivates a rule."),
		forge.WithOperationID("setRuleActive"),
		forge.WithRequestSchema(SetRuleActiveForgeRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register setRuleActive route", forge.Error(err))
	}
}

func (a *ForgeAPI) createRule(ctx forge.Context, req *CreateRuleForgeRequest) (*rule.AutomationRule, error) {
	created, err := a.herald.Rules().Create(ctx.Context(), req.input())
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, created)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listRules(ctx forge.Context, req *ListRulesForgeRequest) ([]*rule.AutomationRule, error) {
	if req.OwnerUserID == "" {
		return nil, forge.BadRequest("owner_user_id query parameter is required")
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := rule.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}
	if req.Active == "true" || req.Active == "false" {
		active := req.Active == "true"
		opts.Active = &active
	}

	rules, err := a.herald.Rules().List(ctx.Context(), req.OwnerUserID, opts)
	if err != nil {
		return nil, mapError(err)
	}

	return rules, nil
}

func (a *ForgeAPI) getRule(ctx forge.Context, req *GetRuleForgeRequest) (*rule.AutomationRule, error) {
	ruleID, err := id.ParseRuleID(req.RuleID)
	if err != nil {
		return nil, forge.BadRequest("invalid rule ID")
	}

	found, getErr := a.herald.Rules().Get(ctx.Context(), ruleID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return found, nil
}

func (a *ForgeAPI) updateRule(ctx forge.Context, req *UpdateRuleForgeRequest) (*rule.AutomationRule, error) {
	ruleID, err := id.ParseRuleID(req.RuleID)
	if err != nil {
		return nil, forge.BadRequest("invalid rule ID")
	}

	updated, updateErr := a.herald.Rules().Update(ctx.Context(), ruleID, req.input())
	if updateErr != nil {
		return nil, mapError(updateErr)
	}

	return updated, nil
}

func (a *ForgeAPI) deleteRule(ctx forge.Context, req *DeleteRuleForgeRequest) (*rule.AutomationRule, error) {
	ruleID, err := id.ParseRuleID(req.RuleID)
	if err != nil {
		return nil, forge.BadRequest("invalid rule ID")
	}

	if deleteErr := a.herald.Rules().Delete(ctx.Context(), ruleID); deleteErr != nil {
		return nil, mapError(deleteErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) setRuleActive(ctx forge.Context, req *SetRuleActiveForgeRequest) (*rule.AutomationRule, error) {
	ruleID, err := id.ParseRuleID(req.RuleID)
	if err != nil {
		return nil, forge.BadRequest("invalid rule ID")
	}

	if setErr := a.herald.Rules().SetActive(ctx.Context(), ruleID, req.Active); setErr != nil {
		return nil, mapError(setErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Account routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerAccountRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("accounts"))

	if err := g.PUT("/accounts", a.upsertAccount,
		forge.WithSummary("Connect account"),
		forge.WithDescription("Links an Instagram account and its access token to an owner."),
		forge.WithOperationID("upsertAccount"),
		forge.WithRequestSchema(UpsertAccountForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Connected account", account.ConnectedAccount{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register upsertAccount route", forge.Error(err))
	}
}

func (a *ForgeAPI) upsertAccount(ctx forge.Context, req *UpsertAccountForgeRequest) (*account.ConnectedAccount, error) {
	if req.OwnerUserID == "" || req.ExternalAccountID == "" {
		return nil, forge.BadRequest("owner_user_id and external_account_id are required")
	}

	acct := &account.ConnectedAccount{
		OwnerUserID:       req.OwnerUserID,
		ExternalAccountID: req.ExternalAccountID,
		Username:          req.Username,
		AccessToken:       req.AccessToken,
		CapabilityScopes:  req.CapabilityScopes,
	}
	if err := a.herald.Store().UpsertAccount(ctx.Context(), acct); err != nil {
		return nil, mapError(err)
	}

	return acct, nil
}

// ---------------------------------------------------------------------------
// Trigger log routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerTriggerLogRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("trigger-logs"))

	if err := g.GET("/trigger-logs", a.listTriggerLogs,
		forge.WithSummary("List trigger logs"),
		forge.WithDescription("Returns rule firings, newest first."),
		forge.WithOperationID("listTriggerLogs"),
		forge.WithRequestSchema(ListTriggerLogsForgeRequest{}),
		forge.WithListResponse(trigger.TriggerLog{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listTriggerLogs route", forge.Error(err))
	}
}

func (a *ForgeAPI) listTriggerLogs(ctx forge.Context, req *ListTriggerLogsForgeRequest) ([]*trigger.TriggerLog, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := trigger.ListOpts{
		Offset:  req.Offset,
		Limit:   limit,
		ActorID: req.ActorID,
	}

	if req.AutomationID != "" {
		ruleID, err := id.ParseRuleID(req.AutomationID)
		if err != nil {
			return nil, forge.BadRequest("invalid automation ID")
		}
		opts.AutomationID = &ruleID
	}

	var err error
	if opts.From, err = parseOptionalTime(req.From); err != nil {
		return nil, forge.BadRequest("invalid 'from' time format (use RFC3339)")
	}
	if opts.To, err = parseOptionalTime(req.To); err != nil {
		return nil, forge.BadRequest("invalid 'to' time format (use RFC3339)")
	}

	logs, err := a.herald.Store().ListTriggerLogs(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return logs, nil
}

// ---------------------------------------------------------------------------
// Failure routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerFailureRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("failures"))

	if err := g.GET("/failures", a.listFailures,
		forge.WithSummary("List failures"),
		forge.WithDescription("Returns responses that exhausted their retries, newest first."),
		forge.WithOperationID("listFailures"),
		forge.WithRequestSchema(ListFailuresForgeRequest{}),
		forge.WithListResponse(failure.Failure{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listFailures route", forge.Error(err))
	}

	if err := g.GET("/failures/:failureId", a.getFailure,
		forge.WithSummary("Get failure"),
		forge.WithDescription("Returns a single failure record."),
		forge.WithOperationID("getFailure"),
		forge.WithResponseSchema(http.StatusOK, "Failure details", failure.Failure{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getFailure route", forge.Error(err))
	}

	if err := g.DELETE("/failures", a.purgeFailures,
		forge.WithSummary("Purge failures"),
		forge.WithDescription("Deletes failure records older than a cutoff."),
		forge.WithOperationID("purgeFailures"),
		forge.WithRequestSchema(PurgeFailuresForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Purge result", PurgeFailuresForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register purgeFailures route", forge.Error(err))
	}
}

func (a *ForgeAPI) listFailures(ctx forge.Context, req *ListFailuresForgeRequest) ([]*failure.Failure, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := failure.ListOpts{
		Offset:      req.Offset,
		Limit:       limit,
		OwnerUserID: req.OwnerUserID,
	}

	if req.AutomationID != "" {
		ruleID, err := id.ParseRuleID(req.AutomationID)
		if err != nil {
			return nil, forge.BadRequest("invalid automation ID")
		}
		opts.AutomationID = &ruleID
	}

	var err error
	if opts.From, err = parseOptionalTime(req.From); err != nil {
		return nil, forge.BadRequest("invalid 'from' time format (use RFC3339)")
	}
	if opts.To, err = parseOptionalTime(req.To); err != nil {
		return nil, forge.BadRequest("invalid 'to' time format (use RFC3339)")
	}

	failures, err := a.herald.Failures().List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return failures, nil
}

func (a *ForgeAPI) getFailure(ctx forge.Context, req *GetFailureForgeRequest) (*failure.Failure, error) {
	failID, err := id.ParseFailureID(req.FailureID)
	if err != nil {
		return nil, forge.BadRequest("invalid failure ID")
	}

	f, getErr := a.herald.Failures().Get(ctx.Context(), failID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return f, nil
}

func (a *ForgeAPI) purgeFailures(ctx forge.Context, req *PurgeFailuresForgeRequest) (*PurgeFailuresForgeResponse, error) {
	before, err := time.Parse(time.RFC3339, req.Before)
	if err != nil {
		return nil, forge.BadRequest("invalid 'before' time format (use RFC3339)")
	}

	n, purgeErr := a.herald.Failures().Purge(ctx.Context(), before)
	if purgeErr != nil {
		return nil, mapError(purgeErr)
	}

	return &PurgeFailuresForgeResponse{Purged: n}, nil
}

// ---------------------------------------------------------------------------
// Stats routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerStatsRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("stats"))

	if err := g.GET("/stats", a.getStats,
		forge.WithSummary("System statistics"),
		forge.WithDescription("Returns aggregate counts of trigger logs, failures and dedup entries."),
		forge.WithOperationID("getStats"),
		forge.WithResponseSchema(http.StatusOK, "System statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) getStats(ctx forge.Context, _ *StatsForgeRequest) (*StatsForgeResponse, error) {
	stats, err := collectStats(ctx.Context(), a.herald)
	if err != nil {
		return nil, mapError(err)
	}

	return &StatsForgeResponse{
		TriggerLogs:  stats.TriggerLogs,
		Failures:     stats.Failures,
		DedupEntries: stats.DedupEntries,
	}, nil
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
