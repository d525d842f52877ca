package workload

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ResourceConfig constrains a workload. Empty fields keep the runtime default.
type ResourceConfig struct {
	CPULimit    string // cores ("0.5", "2") or millicores ("500m")
	MemoryLimit string // bytes, or with a binary suffix ("512m", "1Gi")
}

// Limits are parsed resource constraints. Zero means unlimited.
type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
}

// Limits parses r. A nil config yields no limits.
func (r *ResourceConfig) Limits() (Limits, error) {
	var l Limits
	if r == nil {
		return l, nil
	}
	var err error
	if r.MemoryLimit != "" {
		if l.MemoryBytes, err = ParseMemory(r.MemoryLimit); err != nil {
			return Limits{}, err
		}
	}
	if r.CPULimit != "" {
		if l.NanoCPUs, err = ParseCPU(r.CPULimit); err != nil {
			return Limits{}, err
		}
	}
	return l, nil
}

// Longest suffix first so "mi" is not read as "m".
var memoryUnits = []struct {
	suffix string
	shift  uint
}{
	{"ti", 40}, {"gi", 30}, {"mi", 20}, {"ki", 10},
	{"t", 40}, {"g", 30}, {"m", 20}, {"k", 10},
}

// ParseMemory converts "512m", "1Gi" or "1048576" to bytes. Suffixes are
// binary and case-insensitive.
func ParseMemory(s string) (int64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("workload: empty memory limit")
	}
	var shift uint
	for _, u := range memoryUnits {
		if strings.HasSuffix(v, u.suffix) {
			v, shift = strings.TrimSuffix(v, u.suffix), u.shift
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("workload: invalid memory limit %q", s)
	}
	if n > math.MaxInt64>>shift {
		return 0, fmt.Errorf("workload: memory limit %q overflows", s)
	}
	return n << shift, nil
}

// ParseCPU converts "0.5", "2" or "500m" to nanocores.
func ParseCPU(s string) (int64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	scale := 1e9
	if strings.HasSuffix(v, "m") {
		v, scale = strings.TrimSuffix(v, "m"), 1e6
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("workload: invalid CPU limit %q", s)
	}
	return int64(f * scale), nil
}
