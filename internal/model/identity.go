// Package model はドメインモデルを定義する。
package model

// Identity はトークン検証によって得られた認証済みユーザーを表す。
// リクエストごとにトークンから再構築されるため、DBには保存しない。
type Identity struct {
	ID    string // トークンのsubクレーム
	Name  string
	Email string
	Roles RoleSet
}

// Capability はロール文字列から解決された権限タグ。
// ハンドラー内でのアドホックな文字列比較を避けるため、
// トークン検証時に1回だけ解決する。
type Capability string

const (
	// CapabilityAdmin は管理者権限を表す。
	CapabilityAdmin Capability = "admin"
)

// RoleSet は解決済みの権限タグの集合。
type RoleSet map[Capability]struct{}

// NewRoleSet はレルムロール文字列のリストから権限集合を構築する。
// adminRoleはIdPで管理者に割り当てられるロール名を指定する。
func NewRoleSet(realmRoles []string, adminRole string) RoleSet {
	set := make(RoleSet)
	for _, role := range realmRoles {
		if role == adminRole {
			set[CapabilityAdmin] = struct{}{}
		}
	}
	return set
}

// Has は指定された権限を持つかどうかを返す。
func (r RoleSet) Has(c Capability) bool {
	_, ok := r[c]
	return ok
}

// IsAdmin は管理者権限を持つかどうかを返す。
func (r RoleSet) IsAdmin() bool {
	return r.Has(CapabilityAdmin)
}
