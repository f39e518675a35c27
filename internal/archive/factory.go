package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by Open.
const (
	EnvDriver = "QUANTUMCORE_ARCHIVE_DRIVER"
	EnvFSRoot = "QUANTUMCORE_ARCHIVE_FS_ROOT"
)

// Open selects an archive implementation using environment variables.
//
//	QUANTUMCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	QUANTUMCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archive)
//	QUANTUMCORE_ARCHIVE_S3_*: see internal/infra/archive/s3
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(EnvDriver)))
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv(EnvFSRoot))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
