package models

import "time"

// ExportRequest is the body accepted by the export trigger. Fields are not
// validated; missing values flow through as empty strings.
type ExportRequest struct {
	ProjectName  string `json:"project_name"`
	InstanceName string `json:"mysql_instance_name"`
	BucketName   string `json:"bucket_name"`
	Subdirectory string `json:"subdirectory"`
}

// Missing lists the required body fields that are empty. Subdirectory is only
// required when the destination uses it.
func (r ExportRequest) Missing(needSubdirectory bool) []string {
	var out []string
	if r.ProjectName == "" {
		out = append(out, "project_name")
	}
	if r.InstanceName == "" {
		out = append(out, "mysql_instance_name")
	}
	if r.BucketName == "" {
		out = append(out, "bucket_name")
	}
	if needSubdirectory && r.Subdirectory == "" {
		out = append(out, "subdirectory")
	}
	return out
}

// ExportSubmission is one ledger row per submission attempt.
type ExportSubmission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID string    `gorm:"index" json:"requestId"`
	Project   string    `gorm:"index" json:"project"`
	Instance  string    `json:"instance"`
	Bucket    string    `json:"bucket"`
	URI       string    `json:"uri"`
	Operation string    `json:"operation,omitempty"`
	Status    int       `json:"status"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Artifact describes an exported object found in the bucket.
type Artifact struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag,omitempty"`
}
