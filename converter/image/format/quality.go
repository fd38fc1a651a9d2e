package format

func clampQuality(q float32) int {
	switch {
	case q <= 0:
		return 92
	case q > 100:
		return 100
	}
	return int(q)
}
