package export

import (
	sqlapi "google.golang.org/api/sqladmin/v1beta4"
)

const (
	ExportContextKind = "sql#exportContext"
	FileTypeSQL       = "SQL"
)

// NewExportContext describes a SQL dump of every database on the instance to
// uri. A .gz suffix makes Cloud SQL compress the dump.
func NewExportContext(uri string) *sqlapi.ExportContext {
	return &sqlapi.ExportContext{
		Kind:     ExportContextKind,
		FileType: FileTypeSQL,
		Uri:      uri,
	}
}
