package boosting

// SplitGain は二次近似による分割ゲインを返す。
//
//	gain = 0.5 * (G_L²/(H_L+λ) + G_R²/(H_R+λ) - G²/(H+λ)) - γ
//
// G = G_L + G_R, H = H_L + H_R。深さ優先・葉優先の両方の成長戦略で共通。
func SplitGain(gL, hL, gR, hR, lambda, gamma float64) float64 {
	g := gL + gR
	h := hL + hR
	leftScore := (gL * gL) / (hL + lambda)
	rightScore := (gR * gR) / (hR + lambda)
	totalScore := (g * g) / (h + lambda)
	return 0.5*(leftScore+rightScore-totalScore) - gamma
}

// LeafWeight は葉の最適な重み -G/(H+λ) を返す
func LeafWeight(g, h, lambda float64) float64 {
	return -g / (h + lambda)
}

// Gradients は二乗誤差の勾配 g = ŷ - y とヘッセ h = 1 を grad, hess に書き込む
func Gradients(y, pred, grad, hess []float64) {
	for i := range y {
		grad[i] = pred[i] - y[i]
		hess[i] = 1
	}
}

// sums は rows に対する勾配とヘッセの合計を返す
func sums(grad, hess []float64, rows []int) (g, h float64) {
	for _, r := range rows {
		g += grad[r]
		h += hess[r]
	}
	return g, h
}
