package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// Form is a multipart request body. Passing a *Form to a verb makes the
// client leave the boundary-bearing content type to the multipart writer.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	mime     string
	data     []byte
}

// NewForm returns an empty multipart body.
func NewForm() *Form {
	return &Form{}
}

// Field adds a plain form value.
func (f *Form) Field(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// File adds a file part.
func (f *Form) File(field, filename, mimeType string, data []byte) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, mime: mimeType, data: data})
	return f
}

// encode writes the form and returns the body with its content type.
func (f *Form) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", fld.name, err)
		}
	}
	for _, file := range f.files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		if file.mime != "" {
			h.Set("Content-Type", file.mime)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.field, err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", file.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
