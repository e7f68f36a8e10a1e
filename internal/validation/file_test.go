package validation

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formhive/formhive-backend/internal/forms"
)

// makeFileHeader builds a real multipart.FileHeader around content
func makeFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("upload", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := multipart.NewReader(&buf, w.Boundary())
	form, err := r.ReadForm(64 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	files := form.File["upload"]
	require.Len(t, files, 1)
	return files[0]
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

func TestFileValidateAcceptsPDF(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "resume", Type: forms.FieldFile}

	header := makeFileHeader(t, "resume.pdf", pdfContent)
	assert.Empty(t, v.Validate(field, header, FileOptions{}))
}

func TestFileValidateAcceptsPlainText(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "notes", Type: forms.FieldFile}

	header := makeFileHeader(t, "notes.txt", []byte("just some plain notes\nsecond line\n"))
	assert.Empty(t, v.Validate(field, header, FileOptions{}))
}

func TestFileValidateNilHeader(t *testing.T) {
	v := NewFileValidator()

	optional := forms.FieldDefinition{Name: "f", Type: forms.FieldFile}
	assert.Empty(t, v.Validate(optional, nil, FileOptions{}))

	required := forms.FieldDefinition{Name: "f", Type: forms.FieldFile, Required: true}
	assert.Equal(t, "This field is required.", v.Validate(required, nil, FileOptions{}))
}

func TestFileValidateRejectsOversize(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "resume", Type: forms.FieldFile}

	big := make([]byte, 6<<20)
	copy(big, pdfContent)
	header := makeFileHeader(t, "resume.pdf", big)

	msg := v.Validate(field, header, FileOptions{})
	assert.Equal(t, "File exceeds the maximum size of 5 MB.", msg)

	// A per-field limit raises the bound
	field.MaxFileSize = 10
	assert.Empty(t, v.Validate(field, header, FileOptions{}))
}

func TestFileValidateRejectsEmptyFile(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile}

	header := makeFileHeader(t, "empty.txt", nil)
	assert.Equal(t, "The uploaded file is empty.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateRejectsDoubleExtension(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "resume", Type: forms.FieldFile}

	// Content is a genuine PDF; the embedded .php segment still rejects it
	header := makeFileHeader(t, "resume.php.pdf", pdfContent)
	assert.Equal(t, "This file type is not allowed.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateRejectsExtensionMismatch(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile}

	header := makeFileHeader(t, "report.txt", pdfContent)
	assert.Equal(t, "The file extension does not match its content.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateRejectsMissingExtension(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile}

	header := makeFileHeader(t, "README", []byte("plain text content here"))
	assert.Equal(t, "The uploaded file has no extension.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateRejectsForbiddenContent(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile}

	header := makeFileHeader(t, "page.txt", []byte("<!DOCTYPE html><html><body>hi</body></html>"))
	assert.Equal(t, "This file type is not allowed.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateHonorsFieldAccept(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile, Accept: []string{".pdf"}}

	header := makeFileHeader(t, "photo.png", pngBytes(t, 4, 4))
	assert.Equal(t, "This file type is not allowed.", v.Validate(field, header, FileOptions{}))

	header = makeFileHeader(t, "doc.pdf", pdfContent)
	assert.Empty(t, v.Validate(field, header, FileOptions{}))
}

func TestFileValidateAcceptWildcard(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "f", Type: forms.FieldFile, Accept: []string{"image/*"}}

	header := makeFileHeader(t, "photo.png", pngBytes(t, 4, 4))
	assert.Empty(t, v.Validate(field, header, FileOptions{}))

	header = makeFileHeader(t, "doc.pdf", pdfContent)
	assert.Equal(t, "This file type is not allowed.", v.Validate(field, header, FileOptions{}))
}

func TestFileValidateImageDimensions(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "photo", Type: forms.FieldFile}

	header := makeFileHeader(t, "photo.png", pngBytes(t, 32, 32))
	assert.Empty(t, v.Validate(field, header, FileOptions{MaxImageDimension: 64}))

	msg := v.Validate(field, header, FileOptions{MaxImageDimension: 16})
	assert.Equal(t, "Images must be at most 16x16 pixels.", msg)
}

func TestFileValidateRejectsCorruptImage(t *testing.T) {
	v := NewFileValidator()
	field := forms.FieldDefinition{Name: "photo", Type: forms.FieldFile}

	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), []byte("definitely not chunks")...)
	header := makeFileHeader(t, "photo.png", corrupt)
	assert.Equal(t, "The uploaded image could not be decoded.", v.Validate(field, header, FileOptions{}))
}
