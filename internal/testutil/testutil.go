// Package testutil provides test helpers for mailmirror tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (AssertValidUTF8, AssertContainsAll)
//   - store_helpers.go: database test setup (NewTestStore)
//   - fs_helpers.go: filesystem operations (TempDir, WriteFile, ReadFile, MustExist)
//   - archive_helpers.go: archive creation (CreateTarGz, CreateTempZip)
//   - security_data.go: security test vectors (PathTraversalCases)
//   - builders.go: test data builders
//   - encoding.go: encoding test helpers
package testutil
