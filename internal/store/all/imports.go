// Package all registers every built-in descriptor store backend.
//
//	import _ "github.com/jkramsay/flat-file-manager/internal/store/all"
package all

import (
	_ "github.com/jkramsay/flat-file-manager/internal/store/bolt"
	_ "github.com/jkramsay/flat-file-manager/internal/store/sqlite"
)
