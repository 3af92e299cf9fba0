package model

// Color is an RGBA quadruple. The uint8 components keep every channel in
// [0,255] by construction.
type Color struct {
	R uint8 `json:"red"`
	G uint8 `json:"green"`
	B uint8 `json:"blue"`
	A uint8 `json:"alpha"`
}

// ColorScheme pairs a background and a text color. Board-level presets carry
// a name; schemes applied directly to a card or column may leave it empty.
type ColorScheme struct {
	Name       string `json:"name,omitempty"`
	Background Color  `json:"backgroundColor"`
	Text       Color  `json:"textColor"`
}

// Tag is a board-level label. Cards reference tags by title only, so editing
// a tag's scheme here is visible through every card that holds the title.
type Tag struct {
	Title  string      `json:"title"`
	Scheme ColorScheme `json:"colorScheme"`
}
