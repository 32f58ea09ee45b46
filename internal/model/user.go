package model

// User はマーケットプレイス上のユーザープロフィールを表す。
// 認証情報はIdP側が持つため、ここでは出品に必要な属性のみを保持する。
// 位置情報は保存前に小数第1位へ丸められる。
type User struct {
	ID       string
	Location *Location
}
