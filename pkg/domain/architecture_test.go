package domain_test

import (
	"testing"

	"patientcore/testutil"
)

// The domain package is the dependency floor of the repository: everything
// imports it, it imports nothing of ours.
func TestDomainHasNoInternalDependencies(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must not depend on internal packages")
}

func TestDomainHasNoDirectInternalImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must not import internal packages")
}
