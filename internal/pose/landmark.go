package pose

// Default capture resolution. Browser clients resize frames to this before
// running the pose model, so normalized coordinates scale against it.
const (
	DefaultWidth  = 480
	DefaultHeight = 360
)

type Joint string

const (
	Nose          Joint = "nose"
	LeftEye       Joint = "left_eye"
	RightEye      Joint = "right_eye"
	LeftEar       Joint = "left_ear"
	RightEar      Joint = "right_ear"
	LeftShoulder  Joint = "left_shoulder"
	RightShoulder Joint = "right_shoulder"
	LeftElbow     Joint = "left_elbow"
	RightElbow    Joint = "right_elbow"
	LeftWrist     Joint = "left_wrist"
	RightWrist    Joint = "right_wrist"
	LeftHip       Joint = "left_hip"
	RightHip      Joint = "right_hip"
	LeftKnee      Joint = "left_knee"
	RightKnee     Joint = "right_knee"
	LeftAnkle     Joint = "left_ankle"
	RightAnkle    Joint = "right_ankle"
	LeftHeel      Joint = "left_heel"
	RightHeel     Joint = "right_heel"
	LeftFootIndex Joint = "left_foot_index"
	RightFootIdx  Joint = "right_foot_index"
)

// indexedJoints maps MediaPipe pose landmark indices to joint names.
// Face-mesh and hand points that no tracker uses are left out.
var indexedJoints = map[int]Joint{
	0:  Nose,
	2:  LeftEye,
	5:  RightEye,
	7:  LeftEar,
	8:  RightEar,
	11: LeftShoulder,
	12: RightShoulder,
	13: LeftElbow,
	14: RightElbow,
	15: LeftWrist,
	16: RightWrist,
	23: LeftHip,
	24: RightHip,
	25: LeftKnee,
	26: RightKnee,
	27: LeftAnkle,
	28: RightAnkle,
	29: LeftHeel,
	30: RightHeel,
	31: LeftFootIndex,
	32: RightFootIdx,
}

// Landmark is one joint observation, normalized to the frame.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

type Point struct {
	X float64
	Y float64
}

// Frame is the set of landmarks produced for one processed image.
type Frame struct {
	Width     int                `json:"width,omitempty"`
	Height    int                `json:"height,omitempty"`
	Landmarks map[Joint]Landmark `json:"landmarks"`
}

func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Landmarks: make(map[Joint]Landmark)}
}

// FromIndexed builds a Frame from a MediaPipe-ordered landmark slice.
func FromIndexed(width, height int, landmarks []Landmark) Frame {
	f := NewFrame(width, height)
	for i, lm := range landmarks {
		if j, ok := indexedJoints[i]; ok {
			f.Landmarks[j] = lm
		}
	}
	return f
}

func (f Frame) dims() (float64, float64) {
	w, h := f.Width, f.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return float64(w), float64(h)
}

// Empty reports whether the pose model found nobody in the frame.
func (f Frame) Empty() bool {
	return len(f.Landmarks) == 0
}

// Pixel returns the joint position in pixel coordinates.
func (f Frame) Pixel(j Joint) (Point, bool) {
	lm, ok := f.Landmarks[j]
	if !ok {
		return Point{}, false
	}
	w, h := f.dims()
	return Point{X: lm.X * w, Y: lm.Y * h}, true
}

// Normalized returns the joint position in [0,1] frame coordinates.
func (f Frame) Normalized(j Joint) (Point, bool) {
	lm, ok := f.Landmarks[j]
	if !ok {
		return Point{}, false
	}
	return Point{X: lm.X, Y: lm.Y}, true
}

// MinVisibility returns the lowest visibility among joints. A missing joint
// counts as zero.
func (f Frame) MinVisibility(joints ...Joint) float64 {
	if len(joints) == 0 {
		return 0
	}
	lowest := 1.0
	for _, j := range joints {
		lm, ok := f.Landmarks[j]
		if !ok {
			return 0
		}
		if lm.Visibility < lowest {
			lowest = lm.Visibility
		}
	}
	return lowest
}

// Visible reports whether every joint is present with visibility at or above floor.
func (f Frame) Visible(floor float64, joints ...Joint) bool {
	for _, j := range joints {
		lm, ok := f.Landmarks[j]
		if !ok || lm.Visibility < floor {
			return false
		}
	}
	return true
}
