package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// initializeLogging initializes the provider and ldap subsystems. It is
// called at the beginning of each data source Read and function Run.
func initializeLogging(ctx context.Context) context.Context {
	// Pattern: TF_LOG_PROVIDER_LDAP_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, ldapclient.SubsystemProvider,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_PROVIDER"))
	ctx = tflog.NewSubsystem(ctx, ldapclient.SubsystemLDAP,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_LDAP"))
	return ctx
}
