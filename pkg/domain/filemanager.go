package domain

import "fmt"

// LocalFileManager is a reference deploy.FileManager: it answers with a
// stable endpoint reference devices append staged file paths to, backed by
// a plain HTTP file server rather than a CORBA File/FileSystem pair.
type LocalFileManager struct {
	endpoint string
}

// NewLocalFileManager returns a FileManager advertising the given
// reachable endpoint (host:port of the file-staging server).
func NewLocalFileManager(endpoint string) *LocalFileManager {
	return &LocalFileManager{endpoint: endpoint}
}

// IOR implements deploy.FileManager. The name is kept from the domain this
// module generalizes; the value returned is an http(s) base URL, not an
// actual CORBA object reference.
func (f *LocalFileManager) IOR() string {
	if f.endpoint == "" {
		return ""
	}
	return fmt.Sprintf("http://%s/files", f.endpoint)
}
