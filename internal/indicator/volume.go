package indicator

const (
	recentVolumeBars   = 7
	baselineVolumeBars = 30
)

// Volume trend labels.
const (
	VolumeIncreasing = "increasing"
	VolumeDecreasing = "decreasing"
)

// VolumeRatio compares the average of the last 7 volumes with the average of
// the up to 23 volumes before them (the rest of a 30-bar window). When there
// is no earlier volume, or it averages zero, the ratio is neutral (1).
func VolumeRatio(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 1
	}
	recent := tail(volumes, recentVolumeBars)
	earlier := volumes[:len(volumes)-len(recent)]
	baseline := tail(earlier, baselineVolumeBars-recentVolumeBars)

	base := mean(baseline)
	if base <= 0 {
		return 1
	}
	return finite(mean(recent)/base, 1)
}

// VolumeTrend labels a ratio from VolumeRatio.
func VolumeTrend(ratio float64) string {
	if ratio > 1 {
		return VolumeIncreasing
	}
	return VolumeDecreasing
}
