//go:build gofuzz
// +build gofuzz

package ogpeek

func Fuzz(data []byte) int {
	vals, memo, err := Unpickle(data, false)
	if err != nil {
		return 0
	}
	for _, v := range vals {
		if _, err := memo.ResolveAll(v, true); err != nil {
			return 0
		}
	}
	return 1
}
