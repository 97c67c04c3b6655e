package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// Resolution branches
const (
	BranchExisting = "existing"
	BranchMerged   = "merged"
	BranchCreated  = "created"
)

// AccountCreator creates local accounts for first-time external users
type AccountCreator interface {
	CreateAccount(ctx context.Context, in NewAccount) (*entities.User, error)
}

// Resolution is the outcome of resolving one external identity
type Resolution struct {
	UID    int64
	Branch string
}

// IdentityResolver maps an external identity to a local account id, reusing an
// existing mapping, merging into the account that owns the email, or creating
// a new account.
type IdentityResolver struct {
	identities repositories.IdentityRepository
	users      repositories.UserRepository
	accounts   AccountCreator
	auditRepo  repositories.AuditRepository
	inflight   singleflight.Group
	log        *slog.Logger
}

// NewIdentityResolver creates a resolver. auditRepo may be nil.
func NewIdentityResolver(
	identities repositories.IdentityRepository,
	users repositories.UserRepository,
	accounts AccountCreator,
	auditRepo repositories.AuditRepository,
) *IdentityResolver {
	return &IdentityResolver{
		identities: identities,
		users:      users,
		accounts:   accounts,
		auditRepo:  auditRepo,
		log:        slog.Default().With(slog.String("service", "identity_resolver")),
	}
}

// Resolve returns the local account id for identity under mappingKey.
//
// Concurrent calls for the same external id in this process share one
// resolution. A caller whose context ends stops waiting; the shared work runs
// to completion so a created account always gets its mapping.
func (r *IdentityResolver) Resolve(ctx context.Context, mappingKey string, identity auth.Identity) (Resolution, error) {
	key := mappingKey + "\x00" + identity.ExternalID
	workCtx := context.WithoutCancel(ctx)

	ch := r.inflight.DoChan(key, func() (any, error) {
		return r.resolve(workCtx, mappingKey, identity)
	})

	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Resolution{}, res.Err
		}
		return res.Val.(Resolution), nil
	}
}

func (r *IdentityResolver) resolve(ctx context.Context, mappingKey string, identity auth.Identity) (Resolution, error) {
	start := time.Now()
	link := &entities.ExternalIdentity{Namespace: mappingKey, ExternalID: identity.ExternalID}
	log := r.log.With(slog.String("mapping", mappingKey), slog.String("external_id", identity.ExternalID))

	existing, merge, err := r.lookup(ctx, mappingKey, identity)
	if err != nil {
		return Resolution{}, err
	}

	if uid, ok := entities.ParseUID(existing); ok {
		metrics.RecordResolution(BranchExisting, time.Since(start))
		return Resolution{UID: uid, Branch: BranchExisting}, nil
	}

	if identity.Email != "" {
		if uid, ok := entities.ParseUID(merge); ok {
			stored, err := r.identities.LinkIfAbsent(ctx, mappingKey, identity.ExternalID, uid)
			if err != nil {
				return Resolution{}, &StorageError{Op: "link external id", Err: err}
			}
			log.Info("[session-sharing] merged external id into existing account", slog.Int64("uid", stored))
			r.audit(ctx, entities.NewAuditLog(&stored, entities.ActionIdentityLinked, entities.ResourceIdentity).
				WithResourceID(link.Key()).
				WithMetadata("branch", BranchMerged))
			metrics.RecordResolution(BranchMerged, time.Since(start))
			return Resolution{UID: stored, Branch: BranchMerged}, nil
		}
	}

	user, err := r.accounts.CreateAccount(ctx, NewAccount{
		Username: strings.TrimSpace(identity.Username),
		Email:    identity.Email,
		Picture:  identity.Picture,
	})
	if err != nil {
		return Resolution{}, &AccountCreationError{Err: err}
	}

	stored, err := r.identities.LinkIfAbsent(ctx, mappingKey, identity.ExternalID, user.ID)
	if err != nil {
		log.Error("[session-sharing] account created but mapping write failed", slog.Int64("uid", user.ID), slog.Any("error", err))
		return Resolution{}, &StorageError{Op: "link external id", Err: err}
	}

	if stored != user.ID {
		// Another instance bound this external id between our lookup and write.
		metrics.CreateRaces.Inc()
		log.Warn("[session-sharing] lost mapping race, created account is orphaned",
			slog.Int64("orphan_uid", user.ID), slog.Int64("uid", stored))
		r.audit(ctx, entities.NewAuditLog(&user.ID, entities.ActionIdentityRaced, entities.ResourceIdentity).
			WithResourceID(link.Key()).
			WithMetadata("winner_uid", strconv.FormatInt(stored, 10)))
		metrics.RecordResolution(BranchExisting, time.Since(start))
		return Resolution{UID: stored, Branch: BranchExisting}, nil
	}

	log.Info("[session-sharing] created account for external id", slog.Int64("uid", stored))
	r.audit(ctx, entities.NewAuditLog(&stored, entities.ActionIdentityLinked, entities.ResourceIdentity).
		WithResourceID(link.Key()).
		WithMetadata("branch", BranchCreated))
	metrics.RecordResolution(BranchCreated, time.Since(start))
	return Resolution{UID: stored, Branch: BranchCreated}, nil
}

// lookup reads the mapping and the email index at the same time. Either
// failure aborts both.
func (r *IdentityResolver) lookup(ctx context.Context, mappingKey string, identity auth.Identity) (existing, merge string, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := r.identities.GetByExternalID(gctx, mappingKey, identity.ExternalID)
		if err != nil {
			return &StorageError{Op: "lookup external id", Err: err}
		}
		existing = v
		return nil
	})

	if identity.Email != "" {
		g.Go(func() error {
			v, err := r.users.LookupUIDByEmail(gctx, identity.Email)
			if err != nil {
				return &StorageError{Op: "lookup email", Err: err}
			}
			merge = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return existing, merge, nil
}

func (r *IdentityResolver) audit(ctx context.Context, entry *entities.AuditLog) {
	if r.auditRepo == nil {
		return
	}
	if err := r.auditRepo.Create(ctx, entry); err != nil {
		r.log.Warn("failed to write audit log", slog.String("action", string(entry.Action)), slog.Any("error", err))
	}
}
