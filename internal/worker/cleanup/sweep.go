// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れのセッションレコードとサインイン用ワンタイムトークンを
// 周期バッチで削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper は期限切れセッションの削除インターフェース。
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// MagicLinkSweeper は期限切れマジックリンクの削除インターフェース。
type MagicLinkSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepRecorder は削除件数メトリクスの記録先。nil可。
type SweepRecorder interface {
	RecordSessionsSwept(count int64)
}

// SweepJob は期限切れセッションとマジックリンクの自動削除ジョブ。
// 周期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type SweepJob struct {
	sessions   SessionSweeper
	magicLinks MagicLinkSweeper
	logger     *slog.Logger
	metrics    SweepRecorder
	// Interval はジョブの実行間隔（デフォルト: 1時間）。
	Interval time.Duration
}

// NewSweepJob は新しいSweepJobを生成する。
// デフォルトの実行間隔は1時間。
func NewSweepJob(sessions SessionSweeper, magicLinks MagicLinkSweeper, logger *slog.Logger, metrics SweepRecorder) *SweepJob {
	return &SweepJob{
		sessions:   sessions,
		magicLinks: magicLinks,
		logger:     logger,
		metrics:    metrics,
		Interval:   time.Hour,
	}
}

// Start はジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	j.logger.Info("期限切れデータ削除ジョブを開始しました",
		slog.Duration("interval", j.Interval),
	)

	// 起動直後に1回実行
	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("期限切れデータ削除サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("期限切れデータ削除ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("期限切れデータ削除サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の削除サイクルを実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	sessionsDeleted, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}
	if j.metrics != nil {
		j.metrics.RecordSessionsSwept(sessionsDeleted)
	}

	linksDeleted, err := j.magicLinks.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れマジックリンクの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	j.logger.Info("期限切れデータ削除サイクルが完了しました",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("magic_links_deleted", linksDeleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
