package domain

import (
	"testing"

	"quantumcore/testutil"
)

// TestDomainImportBoundaries keeps the domain layer free of internal packages
// and third-party modules so every backend can depend on it.
func TestDomainImportBoundaries(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must not depend on internal packages")
	testutil.AssertNoDirectImports(t, ".", testutil.ExternalModuleImport("quantumcore"), "domain stays on the standard library")
}
