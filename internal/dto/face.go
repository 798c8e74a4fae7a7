package dto

// Face is a single face detection in pixel coordinates of the original frame.
// Box is [left, top, right, bottom], clamped to the frame bounds.
type Face struct {
	Box        [4]int  `json:"box"`
	Confidence float64 `json:"confidence"`
}
