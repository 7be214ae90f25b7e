package multirender

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputPath returns the file a job writes: "<seq>_<letters><ext>" inside dir,
// where letters is the track name reduced to ASCII letters.
func OutputPath(dir string, seq int, name, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%d_%s%s", seq, lettersOnly(name), ext))
}

func lettersOnly(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, name)
}
