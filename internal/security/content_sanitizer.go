// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は出品のタイトルと説明文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import "github.com/microcosm-cc/bluemonday"

// ContentSanitizerService は出品テキストのサニタイズ機能のインターフェースを定義する。
// 出品の作成・更新時、保存前に使用される。
type ContentSanitizerService interface {
	// SanitizeDescription は出品の説明文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, ul, ol, li, blockquote, strong, em）のみを通過させ、
	// script, iframe, style, a, imgタグおよびon*イベント属性を除去する。
	// 出品の説明文は簡単な整形のみを想定しており、リンクや画像の埋め込みは
	// 許可しない（画像は出品のpicturesとして別途添付される）。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeDescription(raw string) string

	// StripTags はタイトルなどのプレーンテキスト項目から
	// すべてのHTMLタグを除去する。
	StripTags(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	descriptionPolicy *bluemonday.Policy
	strictPolicy      *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em
//   - 禁止タグ: script, iframe, style, a, img および全てのon*イベント属性
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグのみ）
	// 許可リストに含めないタグは自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote",
		"strong", "em",
	)

	return &contentSanitizer{
		descriptionPolicy: p,
		strictPolicy:      bluemonday.StrictPolicy(),
	}
}

// SanitizeDescription は出品の説明文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) SanitizeDescription(raw string) string {
	return s.descriptionPolicy.Sanitize(raw)
}

// StripTags はすべてのHTMLタグを除去したプレーンテキストを返す。
func (s *contentSanitizer) StripTags(raw string) string {
	return s.strictPolicy.Sanitize(raw)
}
