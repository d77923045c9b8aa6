package chat

// FileUploadedPlaceholder stands in for turns that carry no text block.
const FileUploadedPlaceholder = "(File uploaded)"

// DisplayTurn is the display-safe rendering of a Turn.
type DisplayTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DisplayView collapses each turn to its trailing text block.
// Turns without any text block render as FileUploadedPlaceholder.
func DisplayView(turns []Turn) []DisplayTurn {
	view := make([]DisplayTurn, 0, len(turns))
	for _, t := range turns {
		text, ok := t.LastText()
		if !ok {
			text = FileUploadedPlaceholder
		}
		view = append(view, DisplayTurn{Role: t.Role, Content: text})
	}
	return view
}
