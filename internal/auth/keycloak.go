package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Provider はOAuth認可コードフローのIdP側操作のインターフェース。
type Provider interface {
	// AuthCodeURL はstateとPKCEチャレンジを埋め込んだ認可URLを生成する。
	AuthCodeURL(state, pkceVerifier string) string
	// Exchange は認可コードとPKCE verifierをアクセストークンに交換する。
	Exchange(ctx context.Context, code, pkceVerifier string) (string, error)
}

// KeycloakConfig はKeycloakプロバイダーの設定。
type KeycloakConfig struct {
	// ServerURL はレルムURL（例: "https://idp.example.com/realms/plantswap"）。
	ServerURL    string
	ClientID     string
	ClientSecret string // publicクライアントの場合は空
	RedirectURL  string
}

// KeycloakProvider はKeycloakのOpenID Connectエンドポイントに対する
// 認可コード+PKCEフローを提供する。
type KeycloakProvider struct {
	config *oauth2.Config
}

// NewKeycloakProvider はKeycloakProviderを生成する。
func NewKeycloakProvider(cfg KeycloakConfig) *KeycloakProvider {
	serverURL := strings.TrimSuffix(cfg.ServerURL, "/")
	return &KeycloakProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  serverURL + "/protocol/openid-connect/auth",
				TokenURL: serverURL + "/protocol/openid-connect/token",
			},
		},
	}
}

// AuthCodeURL はstateとS256チャレンジを埋め込んだ認可URLを生成する。
func (p *KeycloakProvider) AuthCodeURL(state, pkceVerifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(pkceVerifier))
}

// Exchange は認可コードをアクセストークンに交換する。
func (p *KeycloakProvider) Exchange(ctx context.Context, code, pkceVerifier string) (string, error) {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(pkceVerifier))
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token.AccessToken, nil
}

// JWKSURL はレルムURLからJWKS（証明書）エンドポイントのURLを導出する。
func JWKSURL(serverURL string) string {
	return strings.TrimSuffix(serverURL, "/") + "/protocol/openid-connect/certs"
}

// compile-time interface check
var _ Provider = (*KeycloakProvider)(nil)
