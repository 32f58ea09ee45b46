// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, listing, recognition, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeImageNotFound        = "IMAGE_NOT_FOUND"
	ErrCodeListingNotFound      = "LISTING_NOT_FOUND"
	ErrCodeInvalidListing       = "INVALID_LISTING"
	ErrCodeAuthorNoLocation     = "AUTHOR_NO_LOCATION"
	ErrCodeRecognitionFailed    = "RECOGNITION_FAILED"
	ErrCodeLoginSessionExpired  = "LOGIN_SESSION_EXPIRED"
	ErrCodeLoginRejected        = "LOGIN_REJECTED"
	ErrCodeUploadTooLarge       = "UPLOAD_TOO_LARGE"
)

// NewUnsupportedMediaTypeError はサポート外メディアタイプのエラーを生成する。
func NewUnsupportedMediaTypeError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("メディアタイプ %q はサポートされていません。", contentType),
		Category: "validation",
		Action:   "image/jpeg または image/png の画像をアップロードしてください。",
	}
}

// NewImageNotFoundError は画像未検出エラーを生成する。
func NewImageNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("指定された画像が見つかりません: %s", key),
		Category: "validation",
		Action:   "画像キーを確認してください。",
	}
}

// NewListingNotFoundError は出品未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された出品が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "出品IDを確認してください。",
	}
}

// NewInvalidListingError は出品内容が不正な場合のエラーを生成する。
func NewInvalidListingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidListing,
		Message:  fmt.Sprintf("出品内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewAuthorNoLocationError は出品者の位置情報が未設定の場合のエラーを生成する。
func NewAuthorNoLocationError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorNoLocation,
		Message:  "出品には位置情報の設定が必要です。",
		Category: "listing",
		Action:   "プロフィールでおおまかな位置情報を設定してから出品してください。",
	}
}

// NewRecognitionFailedError は種識別に失敗した場合のエラーを生成する。
func NewRecognitionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRecognitionFailed,
		Message:  "植物の種識別に失敗しました。",
		Category: "recognition",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewLoginSessionExpiredError はログインセッション切れのエラーを生成する。
func NewLoginSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginSessionExpired,
		Message:  "ログインセッションが見つからないか、期限切れです。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewLoginRejectedError はログイン拒否のエラーを生成する。
func NewLoginRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginRejected,
		Message:  "ログインに失敗しました。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過のエラーを生成する。
func NewUploadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("アップロードサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "画像を縮小してから再度アップロードしてください。",
	}
}
