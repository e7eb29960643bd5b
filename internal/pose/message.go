package pose

// FrameMessage is the wire form of a frame. It accepts either named
// landmarks or a MediaPipe-ordered array.
type FrameMessage struct {
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	Landmarks     map[Joint]Landmark `json:"landmarks,omitempty"`
	PoseLandmarks []Landmark         `json:"pose_landmarks,omitempty"`
}

func (m FrameMessage) Frame() Frame {
	if len(m.PoseLandmarks) > 0 {
		return FromIndexed(m.Width, m.Height, m.PoseLandmarks)
	}
	f := NewFrame(m.Width, m.Height)
	for j, lm := range m.Landmarks {
		f.Landmarks[j] = lm
	}
	return f
}
