package model

import "math"

// Location は座標（緯度・経度）を表す。
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Round は座標を小数第1位（約11.1km）に丸めた新しいLocationを返す。
// 正確な位置情報を外部に渡したり保存したりしないための措置。
// 参考: https://support.garmin.com/en-US/?faq=hRMBoCTy5a7HqVkxukhHd8
func (l Location) Round() Location {
	return Location{
		Lat: math.Round(l.Lat*10) / 10,
		Lon: math.Round(l.Lon*10) / 10,
	}
}
