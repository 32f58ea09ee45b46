package handler

import (
	"github.com/hitoshi/plantswap/internal/auth"
	"github.com/hitoshi/plantswap/internal/listing"
	"github.com/hitoshi/plantswap/internal/metrics"
	"github.com/hitoshi/plantswap/internal/recognition"
	"github.com/hitoshi/plantswap/internal/repository"
	"github.com/hitoshi/plantswap/internal/storage"
)

// ドメインサービスがハンドラー側インターフェースを満たすことの
// コンパイル時チェック。アダプター層を挟まず直接注入する。
var (
	_ AuthServiceInterface        = (*auth.Service)(nil)
	_ ImageStorageInterface       = (*storage.ImageService)(nil)
	_ RecognitionServiceInterface = (*recognition.Service)(nil)
	_ ListingServiceInterface     = (*listing.Service)(nil)
	_ UserProfileInterface        = (repository.UserRepository)(nil)

	_ LoginMetricsRecorder       = (*metrics.Collector)(nil)
	_ UploadMetricsRecorder      = (*metrics.Collector)(nil)
	_ RecognitionMetricsRecorder = (*metrics.Collector)(nil)
)
