// Package localfs is the local downloads directory view: listing, rename and
// delete, plus a watcher that reports changes made outside the program.
package localfs

import "strings"

// IsHiddenName returns true if the given filename (not path) represents a hidden file.
// This is useful when you already have just the filename and don't need path processing.
// Special entries "." and ".." are not considered hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
