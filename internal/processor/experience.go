package processor

import (
	"math"
	"strings"
	"unicode"

	"talent-copilot/internal/constants"
	"talent-copilot/internal/types"
)

// CalculateExperience 估算总工作年限。
// 启发式规则：把每段经历 Duration 中全部由十进制数字组成的词相加，"2019 2021" 会得到 4040，
// "2-3 years" 得到 0。非 ASCII 数字同样计数，超出 int 范围时取 math.MaxInt。结果只用于粗略分档
func CalculateExperience(experiences []types.WorkExperience) int {
	total := 0
	for _, exp := range experiences {
		duration := exp.Duration
		if duration == "" {
			duration = constants.DefaultDuration
		}
		for _, word := range strings.Fields(duration) {
			n, ok := parseDigits(word)
			if !ok {
				continue
			}
			total = saturatingAdd(total, n)
		}
	}
	return total
}

// parseDigits 解析全部由 Unicode 十进制数字组成的词
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		d, ok := digitValue(r)
		if !ok {
			return 0, false
		}
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
			continue
		}
		n = n*10 + d
	}
	return n, true
}

// digitValue Nd 类字符在码表中按 0-9 连续排列，区间起点总是 0
func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	for _, rg := range unicode.Nd.R16 {
		lo, hi, stride := rune(rg.Lo), rune(rg.Hi), rune(rg.Stride)
		if r >= lo && r <= hi && (r-lo)%stride == 0 {
			return int((r-lo)/stride) % 10, true
		}
	}
	for _, rg := range unicode.Nd.R32 {
		lo, hi, stride := rune(rg.Lo), rune(rg.Hi), rune(rg.Stride)
		if r >= lo && r <= hi && (r-lo)%stride == 0 {
			return int((r-lo)/stride) % 10, true
		}
	}
	return 0, false
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// ClassifyExperience 年限分档：<=1、2-10、>10
func ClassifyExperience(total int) types.ExperienceTier {
	switch {
	case total <= 1:
		return types.TierJunior
	case total <= 10:
		return types.TierMid
	default:
		return types.TierSenior
	}
}
