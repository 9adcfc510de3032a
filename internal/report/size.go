package report

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanSize formats bytes base 1024 with one decimal place
func HumanSize(bytes uint64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}
