// Package archive is the entry point for snapshot archive storage. It re-exports
// the core contract and wraps the infra drivers so that callers never import
// internal/infra/archive directly.
package archive

import (
	"context"

	"quantumcore/internal/archive/core"
	infraFS "quantumcore/internal/infra/archive/fs"
	infraMemory "quantumcore/internal/infra/archive/memory"
	infraS3 "quantumcore/internal/infra/archive/s3"
)

// Store is the archive contract.
type Store = core.Store

// Info describes an archived object.
type Info = core.Info

// Driver identifies an archive backend.
type Driver = core.Driver

// S3Config configures the S3 driver.
type S3Config = infraS3.Config

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrExists is returned when writing to a key that is already taken.
	ErrExists = core.ErrExists
	// ErrNotFound is returned when reading a missing key.
	ErrNotFound = core.ErrNotFound
)

// NewMemory returns a process-local archive.
func NewMemory() Store { return infraMemory.New() }

// NewFilesystem returns an archive rooted at dir.
func NewFilesystem(dir string) (Store, error) { return infraFS.New(dir) }

// NewS3 returns an archive backed by the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return infraS3.New(ctx, cfg) }

// OpenS3FromEnv builds the S3 archive from QUANTUMCORE_ARCHIVE_S3_* variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) { return infraS3.OpenFromEnv(ctx) }

// NewMockS3ForTests exposes the fake-transport S3 archive for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
