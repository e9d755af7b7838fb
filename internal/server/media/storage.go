// Package media uploads staged local files to object storage and returns
// their public URLs.
package media

import "context"

// Storage pushes the file at localPath to remote storage and returns its
// public URL. Implementations remove localPath whether or not the upload
// succeeds. An empty localPath yields an empty URL and no error.
type Storage interface {
	Upload(ctx context.Context, localPath string) (string, error)
}
