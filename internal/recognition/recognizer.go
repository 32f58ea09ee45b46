// Package recognition は外部の植物認識APIとの連携と、
// 認識結果のローカル種カタログへの照合を提供する。
package recognition

import (
	"context"

	"github.com/hitoshi/plantswap/internal/model"
)

// Image は認識に渡す画像の実体とファイル名。
type Image struct {
	Data     []byte
	Filename string
}

// Result は外部認識APIが返した1件の候補。
type Result struct {
	Score          float64
	PowoID         string
	GbifID         *int
	ScientificName string
	CommonNames    []string
}

// Match は種カタログに照合済みの候補。スコアは[0,1]の信頼度。
type Match struct {
	Plant *model.Plant `json:"plant"`
	Score float64      `json:"score"`
}

// Recognizer は植物認識プロバイダーのインターフェース。
// 種カタログへの照合はService側で行うため、実装は外部APIの
// 結果をそのまま返すだけでよい。
type Recognizer interface {
	// Identify は画像群を認識にかけ、候補を信頼度の高い順に返す。
	// locationは呼び出し元で粗い座標に丸め済みであること。
	Identify(ctx context.Context, images []Image, location *model.Location) ([]Result, error)
}
