package macro

// Operation names of the recordable actions.
const (
	OpChangeSpeed      = "change_speed"
	OpCutFragment      = "cut_fragment"
	OpInsertImage      = "insert_image"
	OpConcatenateVideo = "concatenate_video"
	OpRotateVideo      = "rotate_video"
	OpCropVideo        = "crop_video"
)

// Action is one recordable editing operation with its arguments.
// The set of implementations is closed to this package.
type Action interface {
	// Op returns the operation name.
	Op() string

	// args returns the positional arguments in recorded order.
	args() []any
}

// Direction is the rotation direction of RotateVideo.
type Direction string

const (
	// Left rotates 90 degrees counter-clockwise.
	Left Direction = "left"
	// Right rotates 90 degrees clockwise.
	Right Direction = "right"
)

// IsValid returns true if the direction is left or right.
func (d Direction) IsValid() bool {
	return d == Left || d == Right
}

// Degrees returns the rotation angle, positive meaning counter-clockwise.
func (d Direction) Degrees() int {
	if d == Left {
		return 90
	}
	return -90
}

// ChangeSpeed scales playback speed by Factor.
type ChangeSpeed struct {
	Factor float64
}

// CutFragment keeps the [Start, End] range of the clip.
type CutFragment struct {
	Start float64
	End   float64
}

// InsertImage overlays the image at Path from Start to End.
type InsertImage struct {
	Path  string
	Start float64
	End   float64
}

// ConcatenateVideo replaces the clip with the videos at Paths joined in order.
type ConcatenateVideo struct {
	Paths []string
}

// RotateVideo turns the picture by 90 degrees.
type RotateVideo struct {
	Direction Direction
}

// CropVideo keeps the rectangle (X1, Y1)-(X2, Y2).
type CropVideo struct {
	X1, Y1, X2, Y2 int
}

func (ChangeSpeed) Op() string      { return OpChangeSpeed }
func (CutFragment) Op() string      { return OpCutFragment }
func (InsertImage) Op() string      { return OpInsertImage }
func (ConcatenateVideo) Op() string { return OpConcatenateVideo }
func (RotateVideo) Op() string      { return OpRotateVideo }
func (CropVideo) Op() string        { return OpCropVideo }

func (a ChangeSpeed) args() []any { return []any{a.Factor} }
func (a CutFragment) args() []any { return []any{a.Start, a.End} }
func (a InsertImage) args() []any { return []any{a.Path, a.Start, a.End} }
func (a RotateVideo) args() []any { return []any{a.Direction} }
func (a CropVideo) args() []any   { return []any{a.X1, a.Y1, a.X2, a.Y2} }

func (a ConcatenateVideo) args() []any {
	paths := a.Paths
	if paths == nil {
		paths = []string{}
	}
	return []any{paths}
}
