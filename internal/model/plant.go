package model

// Habitat は植物の生育環境の分類。
type Habitat string

const (
	// HabitatOutdoor は屋外栽培を表す。
	HabitatOutdoor Habitat = "outdoor"
	// HabitatIndoor は室内栽培を表す。
	HabitatIndoor Habitat = "indoor"
)

// Plant は種カタログの1レコードを表す。
// 外部分類ID（powo_id）を自然キーとし、認識APIが未知の種を報告した
// 最初のタイミングで遅延作成される。作成後は追記専用の参照データとして
// 扱い、後続の認識結果では一切更新しない（first-seen wins）。
type Plant struct {
	ID            string  // サロゲートキー（UUID）
	PowoID        string  // POWO分類ID（自然キー、一意）
	GbifID        *int    // GBIF分類ID（取得できた場合のみ）
	HumanName     string  // 一般名
	Species       string  // 学名（命名者表記なし）
	Habitat       *Habitat
	ProducesFruit *bool
	Description   string
}
