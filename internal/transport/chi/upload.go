package chi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/kailas-cloud/pictura/internal/domain"
)

// imageFormField is the multipart field carrying the uploaded photograph.
const imageFormField = "image"

// readImage returns the uploaded image from a multipart "image" field or from the raw body.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, _, err := r.FormFile(imageFormField)
		if err != nil {
			return nil, uploadError(err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, uploadError(err)
		}
		return nonEmpty(data)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, uploadError(err)
	}
	return nonEmpty(data)
}

func nonEmpty(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no image uploaded", domain.ErrInvalidImage)
	}
	return data, nil
}

func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit is %d bytes", domain.ErrImageTooLarge, mbe.Limit)
	}
	if errors.Is(err, http.ErrMissingFile) {
		return fmt.Errorf("%w: missing form field %q", domain.ErrInvalidImage, imageFormField)
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidImage, err)
}
