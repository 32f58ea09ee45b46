package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/plantswap/internal/model"
)

const (
	// identifyPath はPl@ntNetの全プロジェクト横断の認識エンドポイント。
	identifyPath = "identify/all"
	// maxResults は1リクエストで要求する候補数の上限。
	maxResults = "10"
)

// PlantNetClient はPl@ntNet APIのクライアント。
// httpClientにはHTTPS専用の外部向けクライアントを渡すこと。
type PlantNetClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // 例: "https://my-api.plantnet.org/v2/"
	apiKey     string
}

// NewPlantNetClient はPlantNetClientを生成する。
func NewPlantNetClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *PlantNetClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &PlantNetClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// plantNetResponse はPl@ntNet APIのレスポンス。
type plantNetResponse struct {
	Results []plantNetResult `json:"results"`
}

type plantNetResult struct {
	Score   float64         `json:"score"`
	Species plantNetSpecies `json:"species"`
	Gbif    plantNetID      `json:"gbif"`
	Powo    plantNetID      `json:"powo"`
}

type plantNetID struct {
	ID string `json:"id"`
}

type plantNetSpecies struct {
	ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
	CommonNames                 []string `json:"commonNames"`
}

// Identify は画像群を1回のmultipartリクエストでPl@ntNetに送信し、
// 候補を信頼度の高い順に返す。locationはリクエストには含めない
// （Pl@ntNetは座標を受け付けないため、認識結果のローカルな
// 関連付けにのみ使われる）。
func (c *PlantNetClient) Identify(ctx context.Context, images []Image, _ *model.Location) ([]Result, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("認識対象の画像がありません")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, image := range images {
		part, err := writer.CreateFormFile("images", image.Filename)
		if err != nil {
			return nil, fmt.Errorf("multipartパートの作成に失敗しました: %w", err)
		}
		if _, err := part.Write(image.Data); err != nil {
			return nil, fmt.Errorf("画像データの書き込みに失敗しました: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("multipartボディの確定に失敗しました: %w", err)
	}

	reqURL, err := url.Parse(c.baseURL + identifyPath)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("nb-results", maxResults)
	q.Set("lang", "en")
	q.Set("api-key", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Pl@ntNet APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("image_count", len(images)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Pl@ntNet APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("image_count", len(images)),
		)
		return nil, fmt.Errorf("Pl@ntNet APIがステータス %d を返しました", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed plantNetResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.logger.Error("Pl@ntNet APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		result := Result{
			Score:          r.Score,
			PowoID:         r.Powo.ID,
			ScientificName: r.Species.ScientificNameWithoutAuthor,
			CommonNames:    r.Species.CommonNames,
		}
		if gbifID, err := strconv.Atoi(r.Gbif.ID); err == nil {
			result.GbifID = &gbifID
		}
		results = append(results, result)
	}

	return results, nil
}

// compile-time interface check
var _ Recognizer = (*PlantNetClient)(nil)
