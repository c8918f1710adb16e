package keyword

import (
	"github.com/rivo/uniseg"
)

// Number of user-perceived characters in text. An emoji with modifiers or a flag counts as one.
func GraphemeCount(text string) int {
	n := 0
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		n++
	}
	return n
}
