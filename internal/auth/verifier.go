// Package auth はベアラートークン検証とOAuth認証フローを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/hitoshi/plantswap/internal/model"
)

// トークン検証の失敗分類。コールバック処理とミドルウェアが
// errors.Isで判別できるようsentinelとして公開する。
var (
	// ErrMalformedToken はトークンのパースに失敗したことを表す。
	ErrMalformedToken = errors.New("malformed token")
	// ErrMissingKeyID はトークンヘッダーにkidが無いことを表す。
	ErrMissingKeyID = errors.New("token header missing kid")
	// ErrUnknownKeyID はkidがJWKSに見つからないことを表す。
	// 鍵ローテーション後に正当なトークンでも発生しうる。
	ErrUnknownKeyID = errors.New("key id not found in jwks")
	// ErrInvalidKeyMaterial はJWKから検証鍵を構築できないことを表す。
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	// ErrSignatureInvalid は署名検証に失敗したことを表す。
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired はトークンの有効期限が切れていることを表す。
	ErrTokenExpired = errors.New("token expired")
	// ErrAudienceMismatch はaudクレームが不一致であることを表す。
	ErrAudienceMismatch = errors.New("token audience mismatch")
)

// tokenClaims はIdPが発行するアクセストークンのクレーム。
// 未知のクレームは無視し、realm_rolesは欠落時に空リストとして扱う。
type tokenClaims struct {
	jwt.RegisteredClaims
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	RealmRoles []string `json:"realm_roles"`
}

// jwksRefreshMinInterval は未知のkid起因のJWKS再取得の最短間隔。
// でたらめなkidを連打されてもIdPへの問い合わせはこの間隔に抑えられる。
const jwksRefreshMinInterval = 5 * time.Minute

// jwksRefreshTimeout はJWKS再取得1回あたりのタイムアウト。
const jwksRefreshTimeout = 10 * time.Second

// Verifier はベアラートークンをJWKSに対して検証する。
// JWKSは起動時に1回取得し、以降は未知のkidに遭遇したときだけ
// 再取得する。IdPが署名鍵をローテーションしても再起動は不要。
type Verifier struct {
	audience  string
	adminRole string

	jwksURL    string
	httpClient *http.Client

	mu                 sync.RWMutex
	keys               jwk.Set
	lastRefresh        time.Time
	refreshMinInterval time.Duration
}

// NewVerifier はjwksURLからJWKSを取得してVerifierを生成する。
// httpClientはnilの場合http.DefaultClientを使用する。
func NewVerifier(ctx context.Context, jwksURL, audience, adminRole string, httpClient *http.Client) (*Verifier, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	keys, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}

	v := NewVerifierWithKeys(keys, audience, adminRole)
	v.jwksURL = jwksURL
	v.httpClient = httpClient
	v.lastRefresh = time.Now()
	return v, nil
}

// NewVerifierWithKeys は取得済みのJWKSからVerifierを生成する。
// 取得元URLを持たないため、鍵ローテーション時の再取得は行わない。
func NewVerifierWithKeys(keys jwk.Set, audience, adminRole string) *Verifier {
	return &Verifier{
		keys:               keys,
		audience:           audience,
		adminRole:          adminRole,
		refreshMinInterval: jwksRefreshMinInterval,
	}
}

// Verify はトークンを検証し、クレームからIdentityを構築する。
// 失敗時はこのパッケージのsentinelエラーのいずれかを返す。
func (v *Verifier) Verify(tokenText string) (*model.Identity, error) {
	claims := &tokenClaims{}

	_, err := jwt.ParseWithClaims(tokenText, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	return &model.Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Roles: model.NewRoleSet(claims.RealmRoles, v.adminRole),
	}, nil
}

// keyfunc はトークンヘッダーのkidをJWKSから検索し、検証鍵を返す。
func (v *Verifier) keyfunc(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, ErrMissingKeyID
	}

	key, found := v.lookupKey(kid)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyID, kid)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKeyMaterial, err)
	}

	return raw, nil
}

// lookupKey はkidに対応する鍵を返す。見つからない場合は鍵ローテーション
// の可能性があるためJWKSを再取得してもう一度だけ検索する。
func (v *Verifier) lookupKey(kid string) (jwk.Key, bool) {
	v.mu.RLock()
	key, found := v.keys.LookupKeyID(kid)
	v.mu.RUnlock()
	if found {
		return key, true
	}

	if !v.refreshKeys() {
		return nil, false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keys.LookupKeyID(kid)
}

// refreshKeys はJWKSを再取得する。取得元URLが無い場合と、前回の
// 取得からrefreshMinInterval未満の場合は何もしない。
func (v *Verifier) refreshKeys() bool {
	if v.jwksURL == "" {
		return false
	}

	v.mu.Lock()
	if time.Since(v.lastRefresh) < v.refreshMinInterval {
		v.mu.Unlock()
		return false
	}
	v.lastRefresh = time.Now()
	v.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), jwksRefreshTimeout)
	defer cancel()

	keys, err := jwk.Fetch(ctx, v.jwksURL, jwk.WithHTTPClient(v.httpClient))
	if err != nil {
		return false
	}

	v.mu.Lock()
	v.keys = keys
	v.mu.Unlock()
	return true
}

// classifyTokenError はjwtライブラリのエラーをsentinelエラーに分類する。
// keyfunc由来のエラーはjwt側でラップされてもerrors.Isで到達できる。
func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, ErrMissingKeyID):
		return ErrMissingKeyID
	case errors.Is(err, ErrUnknownKeyID):
		return ErrUnknownKeyID
	case errors.Is(err, ErrInvalidKeyMaterial):
		return ErrInvalidKeyMaterial
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformedToken
	}
}
