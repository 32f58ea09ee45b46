package recognition

import (
	"context"
	"fmt"

	"github.com/hitoshi/plantswap/internal/model"
	"github.com/hitoshi/plantswap/internal/repository"
)

// maxMatches は呼び出し元に返す候補数の上限。
const maxMatches = 10

// MetricsRecorder は種カタログへの挿入を記録するインターフェース。
type MetricsRecorder interface {
	RecordSpeciesInserted()
}

// Service は認識結果と種カタログの照合を提供する。
// どの具体的なRecognizerが差し込まれるかには依存しない。
type Service struct {
	recognizer Recognizer
	plants     repository.PlantRepository
	collector  MetricsRecorder
}

// NewService はServiceを生成する。collectorはnilでもよい。
func NewService(recognizer Recognizer, plants repository.PlantRepository, collector MetricsRecorder) *Service {
	return &Service{recognizer: recognizer, plants: plants, collector: collector}
}

// Analyze は画像群を認識にかけ、各候補を種カタログに照合して返す。
// 結果は信頼度の高い順、最大10件。locationは外部に渡る前に
// 小数第1位へ丸められる。
func (s *Service) Analyze(ctx context.Context, images []Image, location *model.Location) ([]Match, error) {
	if location != nil {
		rounded := location.Round()
		location = &rounded
	}

	results, err := s.recognizer.Identify(ctx, images, location)
	if err != nil {
		return nil, fmt.Errorf("failed to identify plants: %w", err)
	}

	if len(results) > maxMatches {
		results = results[:maxMatches]
	}

	matches := make([]Match, 0, len(results))
	for i := range results {
		plant, err := s.reconcile(ctx, &results[i])
		if err != nil {
			return nil, err
		}
		matches = append(matches, Match{Plant: plant, Score: results[i].Score})
	}

	return matches, nil
}

// reconcile は候補を自然キー（powo_id）で種カタログに照合する。
// 既存レコードがあればそのまま使う（先着優先 — 後続の認識結果で
// フィールドが違っていても上書きしない）。無ければ挿入するが、
// 並行する別リクエストが先に挿入した場合はON CONFLICT DO NOTHINGで
// 吸収されるため、挿入後の再取得で確定したレコードを採用する。
func (s *Service) reconcile(ctx context.Context, res *Result) (*model.Plant, error) {
	plant, err := s.plants.FindByPowoID(ctx, res.PowoID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up species: %w", err)
	}
	if plant != nil {
		return plant, nil
	}

	humanName := res.ScientificName
	if len(res.CommonNames) > 0 {
		humanName = res.CommonNames[0]
	}

	newPlant := &model.Plant{
		PowoID:    res.PowoID,
		GbifID:    res.GbifID,
		HumanName: humanName,
		Species:   res.ScientificName,
	}
	if err := s.plants.Insert(ctx, newPlant); err != nil {
		return nil, fmt.Errorf("failed to insert species: %w", err)
	}
	if s.collector != nil {
		s.collector.RecordSpeciesInserted()
	}

	plant, err = s.plants.FindByPowoID(ctx, res.PowoID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload species: %w", err)
	}
	if plant == nil {
		return nil, fmt.Errorf("species disappeared after insert: powo_id=%s", res.PowoID)
	}

	return plant, nil
}
