// internal/types/interfaces.go
package types

import (
	"context"
)

// ContentSource yields paginated text for a document locator. Used only for
// the local-load fallback during context resolution; remote locators are
// never passed to it.
type ContentSource interface {
	LoadPages(ctx context.Context, locator string) ([]Page, error)
}
