package utils

import (
	"fmt"
	"io"
	"net/http"
)

// maxMultipartMemory is the part of a multipart body kept in memory; the
// rest spills to temporary files.
const maxMultipartMemory = 64 << 20

type MultipartResult struct {
	// Files maps each form file field to its content.
	Files      map[string][]byte
	Properties Properties
}

type Properties struct {
	FilePath string
	SaveFile bool
	// Options is the raw JSON of the request options.
	Options string
}

// ReadMultiPartForm reads the file fields of a multipart request and the
// filepath, saveFile and options values. Only the first file of each field is
// read.
func ReadMultiPartForm(r *http.Request) (MultipartResult, error) {
	result := MultipartResult{Files: make(map[string][]byte)}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return result, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	for key, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		file, err := headers[0].Open()
		if err != nil {
			return result, fmt.Errorf("failed to open form file %s: %w", key, err)
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return result, fmt.Errorf("failed to read form file %s: %w", key, err)
		}
		result.Files[key] = content
	}

	for key, value := range r.MultipartForm.Value {
		if len(value) == 0 {
			continue
		}
		switch key {
		case "filepath":
			result.Properties.FilePath = value[0]
		case "saveFile":
			result.Properties.SaveFile = value[0] == "true"
		case "options":
			result.Properties.Options = value[0]
		}
	}

	return result, nil
}
