package ldap

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ProviderData is handed from the provider to its data sources and carries
// the configured Searcher.
type ProviderData struct {
	Searcher *Searcher // Searcher bound to the provider's static options
}

// NewProviderData creates a new provider data wrapper.
func NewProviderData(searcher *Searcher) *ProviderData {
	return &ProviderData{
		Searcher: searcher,
	}
}

// Validate ensures the searcher is available.
func (pd *ProviderData) Validate(ctx context.Context) error {
	if pd == nil || pd.Searcher == nil {
		tflog.SubsystemError(ctx, SubsystemProvider, "Provider data is missing a searcher")
		return fmt.Errorf("LDAP searcher is not initialized")
	}
	return nil
}
