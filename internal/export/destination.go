package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/arencloud/sqlexport/internal/config"
)

// timestampLayout renders an instant the way JSON dates are usually written:
// UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var tokenReplacer = strings.NewReplacer("-", "_", ":", "_", ".", "_")

// Timestamp returns the filesystem-safe token embedded in backup names.
// Two exports that land on the same millisecond get the same token.
func Timestamp(t time.Time) string {
	return tokenReplacer.Replace(t.UTC().Format(timestampLayout))
}

// MonthFolder returns the folder name used by the monthly strategy, e.g. "March2024".
func MonthFolder(t time.Time) string {
	t = t.UTC()
	return t.Month().String() + strconv.Itoa(t.Year())
}

// DestinationOptions selects how the folder part of the URI is built.
type DestinationOptions struct {
	Strategy    string // config.FolderMonthly or config.FolderFixed
	FixedFolder string
}

// OptionsFrom picks the destination options out of the service config.
func OptionsFrom(cfg *config.Config) DestinationOptions {
	return DestinationOptions{Strategy: cfg.FolderStrategy, FixedFolder: cfg.FixedFolder}
}

// NeedsSubdirectory reports whether the subdirectory body field is part of the URI.
func (o DestinationOptions) NeedsSubdirectory() bool {
	return o.Strategy != config.FolderFixed
}

// DestinationURI composes the gs:// URI the export is written to. Inputs are
// concatenated as given; empty values leave empty path segments behind.
func DestinationURI(bucket, subdirectory string, now time.Time, opts DestinationOptions) string {
	var b strings.Builder
	b.WriteString("gs://")
	b.WriteString(bucket)
	b.WriteString("/")
	if opts.NeedsSubdirectory() {
		b.WriteString(subdirectory)
		b.WriteString("/")
		b.WriteString(MonthFolder(now))
	} else {
		b.WriteString(opts.FixedFolder)
	}
	b.WriteString("/backup-")
	b.WriteString(Timestamp(now))
	b.WriteString(".gz")
	return b.String()
}
