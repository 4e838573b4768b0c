package reconcile

import "math"

// Ratio scores how alike two strings are on a 0..100 scale: twice the longest
// common subsequence over the combined length, rounded half to even. This is
// the indel-distance ratio, so one dropped or doubled letter in a short name
// still scores high. Either side empty scores 0.
func Ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	lcs := longestCommonSubsequence(ra, rb)
	return int(math.RoundToEven(100 * float64(2*lcs) / float64(len(ra)+len(rb))))
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
