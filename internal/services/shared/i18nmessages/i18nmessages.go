// Package i18nmessages registers the embedded locale catalogs with
// golang.org/x/text. Import it for side effects wherever localized
// messages are printed.
package i18nmessages

import (
	"github.com/instaagents/discovery/internal/platform/i18n/catalog"
)

func init() {
	// Default loads and registers the embedded catalogs on first use.
	_ = catalog.Default()
}
