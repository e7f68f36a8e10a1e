// internal/validation/file.go
// Upload validation: size bounds, MIME allowlist intersected with field
// constraints, content sniffing cross-checked by a second detector,
// extension and double-extension screening, and image dimension limits.
// Unknown content fails closed.

package validation

import (
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"

	"github.com/formhive/formhive-backend/internal/forms"
)

const (
	// DefaultMaxFileSizeMB applies when a field sets no limit
	DefaultMaxFileSizeMB = 5
	// HardMaxFileSizeMB caps any configured or hook-raised limit
	HardMaxFileSizeMB = 50
	// DefaultMaxImageDimension bounds decoded width and height in pixels
	DefaultMaxImageDimension = 4096

	sniffLen = 8192
)

// allowedMIMETypes is the global allowlist, mapping each acceptable content
// type to the file extensions it may legitimately carry. A sniffed type
// missing from this map is rejected outright.
var allowedMIMETypes = map[string][]string{
	"application/pdf":    {".pdf"},
	"image/jpeg":         {".jpg", ".jpeg"},
	"image/png":          {".png"},
	"image/gif":          {".gif"},
	"image/webp":         {".webp"},
	"text/plain":         {".txt", ".csv", ".log", ".md"},
	"text/csv":           {".csv"},
	"application/zip":    {".zip"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
	"application/vnd.ms-excel": {".xls"},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {".xlsx"},
	"application/vnd.oasis.opendocument.text":                           {".odt"},
	"application/vnd.oasis.opendocument.spreadsheet":                    {".ods"},
	"audio/mpeg": {".mp3"},
	"video/mp4":  {".mp4"},
}

// forbiddenMIMETypes can never be allowed, even if a hook tries to add one
// back. Defends against a permissive misconfiguration upstream.
var forbiddenMIMETypes = map[string]bool{
	"text/html":                true,
	"application/xhtml+xml":    true,
	"image/svg+xml":            true,
	"application/x-httpd-php":  true,
	"text/x-php":               true,
	"application/x-sh":         true,
	"text/x-shellscript":       true,
	"application/x-msdownload": true,
	"application/x-dosexec":    true,
	"application/x-executable": true,
	"application/x-mach-binary": true,
	"application/vnd.microsoft.portable-executable": true,
	"application/javascript":                        true,
	"text/javascript":                               true,
}

// dangerousExtensions are rejected anywhere in the filename, which also
// catches double-extension names like resume.php.pdf.
var dangerousExtensions = map[string]bool{
	"php": true, "php3": true, "php4": true, "php5": true, "php7": true,
	"phtml": true, "phar": true,
	"exe": true, "com": true, "scr": true, "msi": true, "dll": true,
	"bat": true, "cmd": true, "ps1": true,
	"sh": true, "bash": true, "cgi": true, "pl": true, "py": true,
	"js": true, "mjs": true, "jar": true, "vbs": true, "wsf": true,
	"asp": true, "aspx": true, "jsp": true, "jspx": true,
	"htaccess": true, "htpasswd": true, "svg": true, "html": true, "htm": true,
}

// FileOptions carries hook-adjusted limits for one validation pass
type FileOptions struct {
	MaxSizeMB         int
	MaxImageDimension int
	// AllowedTypes overrides the global allowlist when non-nil; forbidden
	// types are stripped from it regardless.
	AllowedTypes map[string][]string
}

// FileValidator validates one uploaded file against field constraints
type FileValidator struct{}

func NewFileValidator() *FileValidator {
	return &FileValidator{}
}

// Validate checks the upload for the named field. The returned string is a
// user-facing error message, empty when the file is acceptable. A nil header
// is only an error when the field is required.
func (v *FileValidator) Validate(field forms.FieldDefinition, header *multipart.FileHeader, opts FileOptions) string {
	if header == nil {
		if field.Required {
			return "This field is required."
		}
		return ""
	}

	// Size bound: field limit (default 5MB) capped at the hard 50MB limit,
	// after hooks had their say via opts.
	maxMB := opts.MaxSizeMB
	if maxMB <= 0 {
		maxMB = field.MaxFileSize
	}
	if maxMB <= 0 {
		maxMB = DefaultMaxFileSizeMB
	}
	if maxMB > HardMaxFileSizeMB {
		maxMB = HardMaxFileSizeMB
	}
	if header.Size > int64(maxMB)<<20 {
		return fmt.Sprintf("File exceeds the maximum size of %d MB.", maxMB)
	}

	allowed := v.effectiveAllowlist(field, opts)
	if len(allowed) == 0 {
		return "File uploads are not permitted for this field."
	}

	file, err := header.Open()
	if err != nil {
		return "The uploaded file could not be read."
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "The uploaded file could not be read."
	}
	head = head[:n]
	if len(head) == 0 {
		return "The uploaded file is empty."
	}

	// Sniff the true content type; the client-declared Content-Type header
	// is attacker-controlled and never consulted.
	detected := mimetype.Detect(head)
	baseMIME := strings.Split(detected.String(), ";")[0]

	if forbiddenMIMETypes[baseMIME] {
		return "This file type is not allowed."
	}

	extensions, ok := allowed[baseMIME]
	if !ok {
		// Some detectors report structured types more precisely than the
		// allowlist (e.g. text/csv vs text/plain); fall back to the parent.
		if parent := detected.Parent(); parent != nil {
			base := strings.Split(parent.String(), ";")[0]
			if !forbiddenMIMETypes[base] {
				extensions, ok = allowed[base]
			}
		}
	}
	if !ok {
		return "This file type is not allowed."
	}

	if msg := v.checkFilename(header.Filename, extensions); msg != "" {
		return msg
	}

	// Cross-check with an independent sniffer; disagreement on the broad
	// category is treated as tampering.
	if httpMIME := httpDetect(head); httpMIME != "" && !mimeCompatible(baseMIME, httpMIME) {
		return "This file type is not allowed."
	}

	if strings.HasPrefix(baseMIME, "image/") {
		if msg := v.checkImageDimensions(file, baseMIME, opts); msg != "" {
			return msg
		}
	}

	return ""
}

// effectiveAllowlist intersects the global allowlist with the field's accept
// list, then forcibly strips the forbidden set.
func (v *FileValidator) effectiveAllowlist(field forms.FieldDefinition, opts FileOptions) map[string][]string {
	base := allowedMIMETypes
	if opts.AllowedTypes != nil {
		base = opts.AllowedTypes
	}

	result := make(map[string][]string, len(base))
	for mime, exts := range base {
		if forbiddenMIMETypes[mime] {
			continue
		}
		if len(field.Accept) > 0 && !acceptMatches(field.Accept, mime, exts) {
			continue
		}
		result[mime] = exts
	}
	return result
}

// acceptMatches reports whether a field-level accept entry (a MIME type, a
// wildcard like image/*, or an extension like .pdf) covers this type.
func acceptMatches(accept []string, mime string, exts []string) bool {
	for _, entry := range accept {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case entry == mime:
			return true
		case strings.HasSuffix(entry, "/*") && strings.HasPrefix(mime, strings.TrimSuffix(entry, "*")):
			return true
		case strings.HasPrefix(entry, "."):
			for _, ext := range exts {
				if ext == entry {
					return true
				}
			}
		}
	}
	return false
}

// checkFilename rejects dangerous extensions anywhere in the name and
// requires the final extension to match the sniffed type's allowlist.
func (v *FileValidator) checkFilename(filename string, allowedExts []string) string {
	name := strings.ToLower(filepath.Base(filename))
	if name == "" || name == "." {
		return "The uploaded file has an invalid name."
	}

	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return "The uploaded file has no extension."
	}
	// Every dot-separated segment after the base name is screened, so
	// resume.php.pdf fails even though its final extension is fine.
	for _, part := range parts[1:] {
		if dangerousExtensions[part] {
			return "This file type is not allowed."
		}
	}

	ext := "." + parts[len(parts)-1]
	for _, allowed := range allowedExts {
		if ext == allowed {
			return ""
		}
	}
	return "The file extension does not match its content."
}

func (v *FileValidator) checkImageDimensions(file multipart.File, mime string, opts FileOptions) string {
	maxDim := opts.MaxImageDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxImageDimension
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "The uploaded file could not be read."
	}

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		switch mime {
		case "image/jpeg", "image/png", "image/gif":
			// A decodable type that fails to decode is corrupt or crafted
			return "The uploaded image could not be decoded."
		default:
			// No registered decoder (e.g. webp); dimensions unverifiable
			return ""
		}
	}

	if cfg.Width > maxDim || cfg.Height > maxDim {
		return fmt.Sprintf("Images must be at most %dx%d pixels.", maxDim, maxDim)
	}
	return ""
}

// httpDetect is the second, independent sniffing mechanism
func httpDetect(head []byte) string {
	mime := http.DetectContentType(head)
	return strings.Split(mime, ";")[0]
}

// mimeCompatible compares the two sniffers' verdicts. net/http knows far
// fewer subtypes, so only the top-level class must agree, and its "unknown"
// answer (application/octet-stream) passes.
func mimeCompatible(primary, secondary string) bool {
	if secondary == "application/octet-stream" || primary == secondary {
		return true
	}
	pClass := strings.SplitN(primary, "/", 2)[0]
	sClass := strings.SplitN(secondary, "/", 2)[0]
	return pClass == sClass
}
