// Package cleanup は未参照画像の自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過しても、どの出品からも参照されて
// いない画像をオブジェクトストアとメタデータの両方から日次バッチで
// 削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/plantswap/internal/metrics"
	"github.com/hitoshi/plantswap/internal/repository"
	"github.com/hitoshi/plantswap/internal/storage"
)

// ObjectRemover はオブジェクトストアからの削除を抽象化するインターフェース。
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

// CleanupJob は保持期間を超過した未参照画像の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	images        repository.ImageRepository
	store         ObjectRemover
	collector     metrics.MetricsCollector
	logger        *slog.Logger
	RetentionDays int // 未参照画像の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。collectorはnil可。
func NewCleanupJob(images repository.ImageRepository, store ObjectRemover, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		images:        images,
		store:         store,
		collector:     collector,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した未参照画像を削除する。
// upload_dateがRetentionDays日前より古く、どの出品のサムネイルでもない
// 画像が対象。オブジェクトの削除に成功した（または既に存在しなかった）
// キーだけメタデータを削除するため、途中で失敗しても残ったキーは
// 次回実行で再度対象になる。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)

	keys, err := j.images.ListUnreferencedBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("未参照画像の一覧取得に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("未参照画像の一覧取得に失敗: %w", err)
	}

	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		err := j.store.Remove(ctx, key)
		if err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			// 削除できなかったオブジェクトのメタデータは残し、次回に再試行する
			j.logger.Warn("オブジェクトの削除に失敗しました",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if errors.Is(err, storage.ErrObjectNotFound) {
			// メタデータだけが残っている不整合。行の削除で解消する。
			j.logger.Info("オブジェクトが存在しないメタデータを検出しました",
				slog.String("key", key),
			)
		}
		removed = append(removed, key)
	}

	if err := j.images.DeleteByKeys(ctx, removed); err != nil {
		j.logger.Error("画像メタデータの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("key_count", len(removed)),
		)
		return fmt.Errorf("画像メタデータの削除に失敗: %w", err)
	}

	if j.collector != nil {
		j.collector.RecordImagesCleaned(len(removed))
	}

	duration := time.Since(start)
	j.logger.Info("画像クリーンアップジョブが完了しました",
		slog.Int("candidate_count", len(keys)),
		slog.Int("deleted_count", len(removed)),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
