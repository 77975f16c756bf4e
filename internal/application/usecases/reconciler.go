package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"go-dm/internal/application/ports"
	"go-dm/internal/domain/entities"
)

// Reconciler 会话视图对账：对比消息日志聚合与会话行，发现漂移后幂等重建
type Reconciler struct {
	pairs   ports.PairRepository
	views   ports.ViewRepository
	store   *ConversationViewStore
	metrics ports.MetricsService
	logger  ports.LogService

	ChunkSize   int
	Concurrency int
	Retry       int
}

// NewReconciler 创建对账器
func NewReconciler(pairs ports.PairRepository, views ports.ViewRepository, store *ConversationViewStore, metrics ports.MetricsService, logger ports.LogService) *Reconciler {
	return &Reconciler{
		pairs:       pairs,
		views:       views,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		ChunkSize:   200,
		Concurrency: 4,
		Retry:       2,
	}
}

// RepairPair 重建一对用户的两行
func (r *Reconciler) RepairPair(ctx context.Context, a, b string) error {
	if err := r.store.Rebuild(ctx, a, b); err != nil {
		r.metrics.ViewRepair("failed")
		return err
	}
	if err := r.store.Rebuild(ctx, b, a); err != nil {
		r.metrics.ViewRepair("failed")
		return err
	}
	return nil
}

// checkRow 只在漂移时重建，返回是否发生修复
func (r *Reconciler) checkRow(ctx context.Context, ownerID, otherID string) (bool, error) {
	expected, err := r.store.Derive(ctx, ownerID, otherID)
	if err != nil {
		return false, err
	}
	existing, err := r.views.Get(ctx, ownerID, otherID)
	if err != nil {
		return false, errors.Wrap(err, "reconciler.checkRow.Get")
	}
	if expected == nil && existing == nil {
		return false, nil
	}
	if expected != nil && existing != nil && !existing.DriftsFrom(expected) {
		return false, nil
	}
	if expected == nil && existing.LastMessageID == "" && existing.UnreadCount == 0 {
		return false, nil
	}
	if err := r.store.Rebuild(ctx, ownerID, otherID); err != nil {
		return false, err
	}
	r.metrics.ViewRepair("reconciled")
	return true, nil
}

func (r *Reconciler) checkChunk(ctx context.Context, pairs []*entities.ConversationPair) (int, error) {
	repaired := 0
	for _, p := range pairs {
		for _, owner := range []string{p.Key.Low, p.Key.High} {
			fixed, err := r.checkRow(ctx, owner, p.Key.Other(owner))
			if err != nil {
				return repaired, err
			}
			if fixed {
				repaired++
			}
		}
	}
	return repaired, nil
}

// checkChunkWithRetry 失败后线性退避重试，ctx 结束即放弃
func (r *Reconciler) checkChunkWithRetry(ctx context.Context, chunk []*entities.ConversationPair, retry int) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := r.checkChunk(ctx, chunk)
		if err == nil || attempt >= retry {
			return n, err
		}
		select {
		case <-ctx.Done():
			return n, multierror.Append(err, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
}

// Sweep 扫描 since 之后活跃的会话对：分段并发，带重试
func (r *Reconciler) Sweep(ctx context.Context, since time.Time, limit int) (int, error) {
	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 200
	}
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	retry := r.Retry
	if retry < 0 {
		retry = 0
	}

	pairs, err := r.pairs.ListActiveSince(ctx, since, limit)
	if err != nil {
		return 0, errors.Wrap(err, "reconciler.Sweep.ListActiveSince")
	}
	// 切分
	var chunks [][]*entities.ConversationPair
	for i := 0; i < len(pairs); i += chunkSize {
		end := i + chunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		chunks = append(chunks, pairs[i:end])
	}
	// 调度
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs *multierror.Error
	total := 0
dispatch:
	for _, ch := range chunks {
		chCopy := ch
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			mu.Lock()
			errs = multierror.Append(errs, ctx.Err())
			mu.Unlock()
			break dispatch
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			n, err := r.checkChunkWithRetry(ctx, chCopy, retry)
			mu.Lock()
			defer mu.Unlock()
			total += n
			if err != nil {
				errs = multierror.Append(errs, err)
			}
		}()
	}
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		r.logger.Error(ctx, "对账未完成", err, map[string]interface{}{"pairs": len(pairs), "repaired": total, "failedChunks": errs.Len()})
		return total, err
	}
	if total > 0 {
		r.logger.Info(ctx, "对账完成", map[string]interface{}{"pairs": len(pairs), "repaired": total})
	}
	return total, nil
}
