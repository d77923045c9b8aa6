package chat

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMediaType is used for uploads whose extension is not recognized.
const DefaultMediaType = "application/octet-stream"

// commonMediaTypes covers text formats missing from Go's builtin table
// so results do not depend on the host's mime.types files.
var commonMediaTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".htm":  "text/html",
	".html": "text/html",
}

// Upload is a file attached to a query.
type Upload struct {
	Filename string
	Data     []byte
}

// MediaTypeForFilename infers a media type from the filename extension.
// Parameters such as charset are dropped since the API expects a bare type.
func MediaTypeForFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return DefaultMediaType
	}
	if mt, ok := commonMediaTypes[ext]; ok {
		return mt
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return DefaultMediaType
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return DefaultMediaType
}

// BuildUserTurn assembles a user turn from query text and uploads.
// Documents come first in upload order, the text block is always last.
// File contents are encoded as-is.
func BuildUserTurn(query string, uploads []Upload) Turn {
	content := make([]ContentBlock, 0, len(uploads)+1)
	tokens := 0
	for _, u := range uploads {
		encoded := base64.StdEncoding.EncodeToString(u.Data)
		content = append(content, NewDocumentBlock(MediaTypeForFilename(u.Filename), encoded))
		tokens += EstimateTokens(encoded)
	}
	content = append(content, NewTextBlock(query))
	tokens += EstimateTokens(query)

	return Turn{
		Role:       RoleUser,
		Content:    content,
		TokenCount: tokens,
	}
}
