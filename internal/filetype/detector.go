// Package filetype decides what an uploaded file actually is using
// magic bytes, and whether it can be compressed directly or must be
// converted to PDF first.
package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information.
type FileTypeInfo struct {
	MIMEType        string
	Extension       string
	IsPDF           bool
	NeedsConversion bool
	Supported       bool
	Description     string
}

// Detector handles file type detection using magic bytes.
type Detector struct{}

// New creates a new file type detector.
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type from content, not filename.
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	mimeType := mtype.String()
	extension := mtype.Extension()

	log.Debug().Str("mime", mimeType).Str("ext", extension).Str("file", filePath).Msg("detected file type")

	// Modern Office formats are ZIP containers; mimetype sometimes
	// reports the container instead of the document type.
	if mimeType == "application/zip" || strings.Contains(mimeType, "application/x-zip") {
		ext := strings.ToLower(filepath.Ext(filePath))
		switch ext {
		case ".docx":
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
			extension = ".docx"
		case ".xlsx":
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			extension = ".xlsx"
		case ".pptx":
			mimeType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
			extension = ".pptx"
		case ".odt":
			mimeType = "application/vnd.oasis.opendocument.text"
			extension = ".odt"
		case ".ods":
			mimeType = "application/vnd.oasis.opendocument.spreadsheet"
			extension = ".ods"
		case ".odp":
			mimeType = "application/vnd.oasis.opendocument.presentation"
			extension = ".odp"
		default:
			log.Warn().Str("ext", ext).Msg("ZIP file with unrecognized extension")
		}
	}

	// Legacy Office formats live in OLE/CFB containers.
	if mimeType == "application/x-ole-storage" || mimeType == "application/x-cfb" {
		ext := strings.ToLower(filepath.Ext(filePath))
		switch ext {
		case ".doc":
			mimeType = "application/msword"
			extension = ".doc"
		case ".xls":
			mimeType = "application/vnd.ms-excel"
			extension = ".xls"
		case ".ppt":
			mimeType = "application/vnd.ms-powerpoint"
			extension = ".ppt"
		default:
			log.Warn().Str("ext", ext).Msg("OLE storage with unrecognized extension")
		}
	}

	info := &FileTypeInfo{
		MIMEType:  mimeType,
		Extension: extension,
	}
	d.classify(info)
	return info, nil
}

// classify determines processing requirements per MIME type.
func (d *Detector) classify(info *FileTypeInfo) {
	switch info.MIMEType {
	case "application/pdf":
		info.IsPDF = true
		info.Supported = true
		info.Description = "PDF document"

	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft Word document"

	case "application/vnd.openxmlformats-officedocument.presentationml.presentation":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft PowerPoint presentation"

	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft Excel spreadsheet"

	case "application/msword":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft Word document (legacy)"

	case "application/vnd.ms-powerpoint":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft PowerPoint presentation (legacy)"

	case "application/vnd.ms-excel":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Microsoft Excel spreadsheet (legacy)"

	case "application/vnd.oasis.opendocument.text":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "OpenDocument text"

	case "application/vnd.oasis.opendocument.presentation":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "OpenDocument presentation"

	case "application/vnd.oasis.opendocument.spreadsheet":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "OpenDocument spreadsheet"

	case "application/rtf", "text/rtf":
		info.NeedsConversion = true
		info.Supported = true
		info.Description = "Rich Text Format"

	default:
		info.Supported = false
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}

// RequiresConversion checks if a file needs LibreOffice conversion to
// PDF before it can be compressed.
func (d *Detector) RequiresConversion(filePath string) (bool, error) {
	info, err := d.Detect(filePath)
	if err != nil {
		return false, err
	}
	if info.IsPDF {
		return false, nil
	}
	return info.Supported && info.NeedsConversion, nil
}
