package objstore

import "fmt"

// Backend names accepted by NewOpener.
const (
	BackendMemory = "memory"
	BackendGCS    = "gcs"
	BackendMinIO  = "minio"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend        string
	Bucket         string
	GCSCredentials string
	MinIO          MinIOSettings
}

// NewOpener returns the Opener for the configured backend.
func NewOpener(s Settings) (Opener, error) {
	switch s.Backend {
	case BackendMemory, "":
		return NewMemory(s.Bucket).Opener(), nil
	case BackendGCS:
		return OpenGCS(s.Bucket, s.GCSCredentials), nil
	case BackendMinIO:
		m := s.MinIO
		m.Bucket = s.Bucket
		return OpenMinIO(m), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}
