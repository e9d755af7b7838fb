package httpapi

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/dmitrijs2005/accounthub/internal/common"
	"github.com/dmitrijs2005/accounthub/internal/filex"
)

const maxMultipartMemory = 32 << 20

const msgMalformedForm = "Malformed multipart form"

// stagedFiles maps form field names to files staged on local disk.
type stagedFiles map[string]string

// cleanup removes whatever the media storage did not consume.
func (f stagedFiles) cleanup() {
	for _, path := range f {
		filex.RemoveQuietly(path)
	}
}

// stageUploads parses a multipart request and stages the first file of each
// named field under the upload directory. Absent fields are simply missing
// from the result. The returned stagedFiles must be cleaned up by the caller
// even when an error is returned.
func (s *Server) stageUploads(r *http.Request, fields ...string) (stagedFiles, error) {
	staged := stagedFiles{}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return staged, common.Validation(msgMalformedForm)
		}
		return staged, &common.APIError{Kind: common.KindValidation, Message: msgMalformedForm, Err: err}
	}
	defer r.MultipartForm.RemoveAll()

	dir, err := filex.EnsureDir(s.uploadDir)
	if err != nil {
		return staged, common.Internal(err)
	}

	for _, field := range fields {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}

		path, err := stageOne(dir, headers[0])
		if err != nil {
			return staged, common.Internal(fmt.Errorf("stage %s: %w", field, err))
		}
		staged[field] = path
	}

	return staged, nil
}

func stageOne(dir string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	return filex.Stage(dir, fh.Filename, f)
}
