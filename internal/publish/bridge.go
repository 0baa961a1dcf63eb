// Package publish performs the one-shot, idempotent publication of a host
// post to the chain.
//
// Publish short-circuits on an existing success record, so it is safe to
// call again after any outcome. Each call that reaches the network makes
// exactly one durable write: the success record or the error message.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/hivepress/internal/beneficiary"
	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/chain"
	"github.com/roach88/hivepress/internal/config"
	"github.com/roach88/hivepress/internal/content"
	"github.com/roach88/hivepress/internal/keylock"
	"github.com/roach88/hivepress/internal/metrics"
	"github.com/roach88/hivepress/internal/slug"
	"github.com/roach88/hivepress/internal/store"
)

// metadataFormat is the body format announced in json_metadata.
const metadataFormat = "html"

// Store is the persistence the bridge needs.
type Store interface {
	GetPost(ctx context.Context, id int64) (bridge.Post, error)
	GetPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error)
	SavePublishSuccess(ctx context.Context, rec bridge.PublishRecord) (bridge.PublishRecord, error)
	SavePublishError(ctx context.Context, postID int64, msg string) error
}

// Broadcaster submits transactions. *chain.Client implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx chain.Transaction) (chain.BroadcastResult, error)
}

// Bridge publishes posts.
type Bridge struct {
	cfg     config.Config
	store   Store
	node    Broadcaster
	signer  chain.Signer
	slugs   *slug.Deriver
	locks   keylock.Locker
	metrics *metrics.Metrics
	log     *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSigner sets the transaction signer. Defaults to chain.RelaySigner.
func WithSigner(s chain.Signer) Option {
	return func(b *Bridge) { b.signer = s }
}

// WithSeeds sets the permlink seed source. Defaults to slug.TimeSeed.
func WithSeeds(seeds slug.SeedSource) Option {
	return func(b *Bridge) { b.slugs = slug.NewDeriver(seeds) }
}

// WithLocker sets the per-post lock. Defaults to an in-process lock.
func WithLocker(l keylock.Locker) Option {
	return func(b *Bridge) { b.locks = l }
}

// WithMetrics records publish outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// New creates a Bridge.
func New(cfg config.Config, st Store, node Broadcaster, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		store:  st,
		node:   node,
		signer: chain.RelaySigner{},
		slugs:  slug.NewDeriver(nil),
		locks:  keylock.NewLocal(),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FetchPublishRecord returns the stored record for postID. The bool is
// false when the post was never attempted.
func (b *Bridge) FetchPublishRecord(ctx context.Context, postID int64) (bridge.PublishRecord, bool, error) {
	return b.store.GetPublishRecord(ctx, postID)
}

// Publish publishes postID once. A post that already has a success record
// returns that record without a network call.
//
// CONFIGURATION and VALIDATION errors are returned before any network call
// and leave no record. TRANSPORT and REMOTE_REJECTION errors are persisted
// as the post's error state and returned.
func (b *Bridge) Publish(ctx context.Context, postID int64) (bridge.PublishRecord, error) {
	if err := b.cfg.Validate(); err != nil {
		return bridge.PublishRecord{}, err
	}
	if postID <= 0 {
		return bridge.PublishRecord{}, bridge.NewValidationError("post id must be positive, got %d", postID)
	}

	unlock, err := b.locks.Lock(ctx, "publish:"+strconv.FormatInt(postID, 10))
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("lock post %d: %w", postID, err)
	}
	defer unlock()

	existing, ok, err := b.store.GetPublishRecord(ctx, postID)
	if err != nil {
		return bridge.PublishRecord{}, err
	}
	if ok && existing.OK() {
		b.metrics.Publish(metrics.OutcomeExisting)
		b.log.Debug("already published", "post", postID, "permlink", existing.Permlink)
		return existing, nil
	}

	tx, permlink, err := b.build(ctx, postID)
	if err != nil {
		return bridge.PublishRecord{}, err
	}

	if err := b.signer.Sign(ctx, &tx); err != nil {
		return bridge.PublishRecord{}, b.fail(ctx, postID, bridge.NewRemoteRejection("sign", err))
	}

	res, err := b.node.Broadcast(ctx, tx)
	if err != nil {
		return bridge.PublishRecord{}, b.fail(ctx, postID, err)
	}

	txRef := res.ID
	if txRef == "" {
		if txRef, err = chain.Digest(tx); err != nil {
			return bridge.PublishRecord{}, b.fail(ctx, postID, err)
		}
	}

	stored, err := b.store.SavePublishSuccess(ctx, bridge.PublishRecord{
		PostID:   postID,
		Author:   beneficiary.NormalizeAccount(b.cfg.Account),
		Permlink: permlink,
		TxRef:    txRef,
	})
	if err != nil {
		return bridge.PublishRecord{}, fmt.Errorf("persist publish of post %d: %w", postID, err)
	}

	b.metrics.Publish(metrics.OutcomePublished)
	b.log.Info("published", "post", postID, "author", stored.Author, "permlink", stored.Permlink, "tx", stored.TxRef)
	return stored, nil
}

// build gathers the post and assembles the unsigned transaction.
func (b *Bridge) build(ctx context.Context, postID int64) (chain.Transaction, string, error) {
	post, err := b.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return chain.Transaction{}, "", withPost(bridge.NewValidationError("post not found"), postID)
	}
	if err != nil {
		return chain.Transaction{}, "", err
	}

	title := strings.TrimSpace(post.Title)
	if title == "" {
		return chain.Transaction{}, "", withPost(bridge.NewValidationError("title is empty"), postID)
	}

	splits, err := beneficiary.Encode(post.Splits, &beneficiary.Default{
		Account: b.cfg.Beneficiary.Account,
		Percent: b.cfg.Beneficiary.Percent,
	})
	if err != nil {
		return chain.Transaction{}, "", withPost(err, postID)
	}
	if total := beneficiary.Total(splits); total > beneficiary.MaxWeight {
		return chain.Transaction{}, "", withPost(
			bridge.NewValidationError("reward splits total %d basis points, limit is %d", total, beneficiary.MaxWeight), postID)
	}
	if dups := beneficiary.Duplicates(post.Splits); len(dups) > 0 {
		b.log.Debug("duplicate split recipients ignored", "post", postID, "accounts", dups)
	}

	tags := NormalizeTags(post.Tags, b.cfg.DefaultTag)
	meta, err := chain.EncodeMetadata(chain.Metadata{
		Tags:         tags,
		App:          b.cfg.AppName,
		Format:       metadataFormat,
		CanonicalURL: post.Permalink,
	})
	if err != nil {
		return chain.Transaction{}, "", fmt.Errorf("encode metadata: %w", err)
	}

	author := beneficiary.NormalizeAccount(b.cfg.Account)
	permlink := b.slugs.Next(title)

	ops := []chain.Operation{chain.CommentOp{
		Author:       author,
		Permlink:     permlink,
		Title:        title,
		Body:         content.WithFooter(post.Content, b.cfg.SiteName, post.Permalink),
		JSONMetadata: meta,
	}}
	if len(splits) > 0 {
		ops = append(ops, chain.NewCommentOptions(author, permlink, splits))
	}
	return chain.NewTransaction(ops...), permlink, nil
}

// fail persists err as the post's error state and returns it. The record
// keeps the user-facing message; the full error only goes to the log.
func (b *Bridge) fail(ctx context.Context, postID int64, err error) error {
	err = withPost(err, postID)
	b.metrics.Publish(metrics.OutcomeFailed)
	b.log.Warn("publish failed", "post", postID, "code", bridge.CodeOf(err), "error", err)

	if saveErr := b.store.SavePublishError(ctx, postID, bridge.UserMessage(err)); saveErr != nil {
		return fmt.Errorf("%w (persisting error state: %v)", err, saveErr)
	}
	return err
}

// withPost tags a bridge error with postID.
func withPost(err error, postID int64) error {
	var be *bridge.Error
	if errors.As(err, &be) && be.PostID == 0 {
		be.PostID = postID
	}
	return err
}
