// Package merge applies accepted grouping decisions to the mapping store.
//
// Every multi-row operation here is deliberately non-transactional: the
// backing store has no cross-call transactions, so failures are aggregated
// and reported per row ("7 of 9 applied") instead of rolled back.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lindqvist/kvitto/internal/category"
	"github.com/lindqvist/kvitto/internal/common"
	"github.com/lindqvist/kvitto/internal/model"
	"github.com/lindqvist/kvitto/internal/service"
)

// Orchestrator coordinates merge, rename, and ignore operations against the
// mapping store.
type Orchestrator struct {
	storage service.Storage
	cfg     Config
}

// Config holds policy options for the orchestrator.
type Config struct {
	// AllowGlobalWrites permits user-triggered operations to rewrite global
	// mapping rows. Off by default; the shared layer is then read-only from
	// here and attempts surface ErrPermission.
	AllowGlobalWrites bool
	// ApplyConcurrency bounds how many clusters a bulk apply writes in
	// parallel.
	ApplyConcurrency int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		AllowGlobalWrites: false,
		ApplyConcurrency:  4,
	}
}

// New creates an orchestrator with the default configuration.
func New(storage service.Storage) *Orchestrator {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(storage service.Storage, cfg Config) *Orchestrator {
	if cfg.ApplyConcurrency <= 0 {
		cfg.ApplyConcurrency = 1
	}
	return &Orchestrator{storage: storage, cfg: cfg}
}

// AcceptRequest describes an accepted cluster decision.
type AcceptRequest struct {
	Excluded    map[string]bool
	UserID      string
	FinalName   string
	Category    string
	TargetGroup string
	Cluster     model.Cluster
}

// groupName resolves the destination group: an existing group wins over the
// proposed final name.
func (r *AcceptRequest) groupName() string {
	if r.TargetGroup != "" {
		return r.TargetGroup
	}
	return r.FinalName
}

// AcceptCluster writes one accepted cluster into the mapping store. Members
// in Excluded are skipped (group-split via exclusion). Each remaining member
// gets its mapping created or updated to the destination group; a member
// failure is recorded and the batch continues. The context is checked
// between members so a long batch can be canceled, never mid-write.
//
// If the members' receipt line items carry more than one distinct category,
// an explicit Category is required and the call fails with
// common.ErrCategoryRequired before any write. With a single shared
// category, that category is the default.
func (o *Orchestrator) AcceptCluster(ctx context.Context, req AcceptRequest) (service.PartialResult, error) {
	var result service.PartialResult

	if req.UserID == "" {
		return result, fmt.Errorf("%w: user ID", common.ErrMissingConfig)
	}
	groupName := req.groupName()
	if groupName == "" {
		return result, fmt.Errorf("%w: final group name", common.ErrMissingConfig)
	}

	members := make([]string, 0, len(req.Cluster.Members))
	for _, m := range req.Cluster.Members {
		if !req.Excluded[m] {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return result, nil
	}

	cat := req.Category
	if cat == "" {
		status, err := o.memberCategoryStatus(ctx, req.UserID, members)
		if err != nil {
			return result, err
		}
		if status.Mixed {
			return result, fmt.Errorf("%w: members span %v", common.ErrCategoryRequired, status.Distinct)
		}
		cat = status.Common
	}

	for _, member := range members {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		created, err := o.applyMember(ctx, req.UserID, member, groupName, cat)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{Name: member, Err: err})
			slog.Error("Failed to apply cluster member",
				"member", member,
				"group", groupName,
				"error", err)
			continue
		}

		result.Succeeded++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	slog.Info("Applied cluster",
		"group", groupName,
		"created", result.Created,
		"updated", result.Updated,
		"failed", result.Failed)
	return result, nil
}

// applyMember creates or updates one member's mapping. Returns whether a new
// row was created.
func (o *Orchestrator) applyMember(ctx context.Context, userID, member, groupName, cat string) (bool, error) {
	existing, err := o.storage.GetMapping(ctx, userID, member)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, err
	}

	mapping := &model.ProductMapping{
		UserID:       userID,
		OriginalName: member,
		MappedName:   groupName,
		Category:     cat,
	}

	if existing == nil {
		return true, o.storage.CreateMapping(ctx, mapping)
	}
	if cat == "" {
		// Keep whatever category the row already had.
		mapping.Category = existing.Category
	}
	return false, o.storage.SaveMapping(ctx, mapping)
}

// memberCategoryStatus summarizes the categories observed on the members'
// receipt line items.
func (o *Orchestrator) memberCategoryStatus(ctx context.Context, userID string, members []string) (category.GroupStatus, error) {
	aggregates, err := o.storage.GetNameAggregates(ctx, userID)
	if err != nil {
		return category.GroupStatus{}, fmt.Errorf("failed to load line item categories: %w", err)
	}

	var observed []string
	for _, member := range members {
		if agg, ok := aggregates[member]; ok {
			observed = append(observed, agg.Categories...)
		}
	}
	return category.StatusOf(observed), nil
}

// ApplyResult pairs a cluster with the outcome of applying it.
type ApplyResult struct {
	Err     error
	Key     string
	Outcome service.PartialResult
}

// AcceptClusters applies several accepted clusters, writing up to
// Config.ApplyConcurrency of them in parallel. Each cluster's writes are
// independent; a failing cluster never corrupts what the others already
// wrote. Results come back in request order.
func (o *Orchestrator) AcceptClusters(ctx context.Context, reqs []AcceptRequest) []ApplyResult {
	results := make([]ApplyResult, len(reqs))

	sem := make(chan struct{}, o.cfg.ApplyConcurrency)
	var wg sync.WaitGroup

	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := o.AcceptCluster(ctx, reqs[i])
			results[i] = ApplyResult{
				Key:     reqs[i].Cluster.Key(),
				Outcome: outcome,
				Err:     err,
			}
		}(i)
	}

	wg.Wait()
	return results
}

// IgnoreCluster records that the user dismissed a candidate cluster so it is
// never re-suggested. Ignoring the same cluster twice is a no-op success.
func (o *Orchestrator) IgnoreCluster(ctx context.Context, userID string, cluster model.Cluster) error {
	return o.storage.AddIgnoredSuggestion(ctx, &model.IgnoredSuggestion{
		UserID:   userID,
		Products: cluster.Members,
	})
}

// MergeGroups rewrites all rows carrying any of groupNames to newName. At
// least two group names are required; merging one group into itself is a
// rename, not a merge. Global rows are touched only when policy allows.
func (o *Orchestrator) MergeGroups(ctx context.Context, userID string, groupNames []string, newName string) (service.PartialResult, error) {
	var result service.PartialResult

	if len(groupNames) < 2 {
		return result, fmt.Errorf("%w: merge needs at least 2 groups, got %d", common.ErrInvalidConfig, len(groupNames))
	}
	if newName == "" {
		return result, fmt.Errorf("%w: new group name", common.ErrMissingConfig)
	}

	for _, oldName := range groupNames {
		if oldName == newName {
			continue
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		part, err := o.RenameGroup(ctx, userID, oldName, newName)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{Name: oldName, Err: err})
			continue
		}
		mergePartial(&result, part)
	}

	return result, nil
}

// RenameGroup renames a group in every scope that currently carries it. The
// user scope is always attempted; the global scope only when rows exist
// there, and then subject to the AllowGlobalWrites policy. A global-scope
// failure never rolls back user-scope successes; both sub-counts are
// reported.
func (o *Orchestrator) RenameGroup(ctx context.Context, userID, oldName, newName string) (service.PartialResult, error) {
	var result service.PartialResult

	userPart, err := o.storage.RenameGroup(ctx, userID, oldName, newName, model.ScopeUser)
	if err != nil {
		return result, fmt.Errorf("failed to rename user group: %w", err)
	}
	mergePartial(&result, userPart)

	globalCount, err := o.countGlobalGroupRows(ctx, oldName)
	if err != nil {
		return result, err
	}
	if globalCount == 0 {
		return result, nil
	}

	if !o.cfg.AllowGlobalWrites {
		result.Failed += globalCount
		result.Errors = append(result.Errors, service.RowError{
			Name: oldName,
			Err:  fmt.Errorf("%w: %d global rows left under %q", common.ErrPermission, globalCount, oldName),
		})
		return result, nil
	}

	globalPart, err := o.storage.RenameGroup(ctx, userID, oldName, newName, model.ScopeGlobal)
	if err != nil {
		// User-scope work already applied stays applied.
		result.Failed += globalCount
		result.Errors = append(result.Errors, service.RowError{Name: oldName, Err: err})
		return result, nil
	}
	mergePartial(&result, globalPart)

	return result, nil
}

func (o *Orchestrator) countGlobalGroupRows(ctx context.Context, mappedName string) (int, error) {
	globals, err := o.storage.GetGlobalMappings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load global mappings: %w", err)
	}
	count := 0
	for i := range globals {
		if globals[i].MappedName == mappedName {
			count++
		}
	}
	return count, nil
}

// ManualMerge regroups an explicit selection of rows, possibly spanning both
// layers, dispatching each write on the ref's scope tag. Category, when
// given, is applied to every row; when empty, existing categories stay
// untouched. A ref whose row has vanished counts as already resolved.
func (o *Orchestrator) ManualMerge(ctx context.Context, refs []model.MappingRef, mappedName, cat string) (service.PartialResult, error) {
	var result service.PartialResult

	if mappedName == "" {
		return result, fmt.Errorf("%w: mapped name", common.ErrMissingConfig)
	}

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if ref.Scope == model.ScopeGlobal && !o.cfg.AllowGlobalWrites {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{
				Name: ref.ID,
				Err:  fmt.Errorf("%w: global mapping %s", common.ErrPermission, ref.ID),
			})
			continue
		}

		err := o.storage.UpdateMappingGroup(ctx, ref, mappedName, cat)
		if errors.Is(err, common.ErrNotFound) {
			// Row already gone: nothing left to regroup.
			slog.Info("Mapping vanished before manual merge, skipping", "ref", ref.ID)
			result.Succeeded++
			continue
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, service.RowError{Name: ref.ID, Err: err})
			continue
		}
		result.Succeeded++
		result.Updated++
	}

	return result, nil
}

func mergePartial(dst *service.PartialResult, src service.PartialResult) {
	dst.Created += src.Created
	dst.Updated += src.Updated
	dst.Succeeded += src.Succeeded
	dst.Failed += src.Failed
	dst.Errors = append(dst.Errors, src.Errors...)
}
