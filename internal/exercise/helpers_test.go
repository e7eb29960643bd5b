package exercise

import (
	"math"

	"github.com/kdimtricp/repcam/internal/pose"
)

// armFrame places a shoulder-elbow-wrist chain per arm bent at the given
// angles. A square frame keeps pixel and normalized angles identical.
func armFrame(leftDeg, rightDeg, visibility float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	place := func(shoulder, elbow, wrist pose.Joint, x, deg float64) {
		rad := deg * math.Pi / 180
		f.Landmarks[shoulder] = pose.Landmark{X: x, Y: 0.3, Visibility: visibility}
		f.Landmarks[elbow] = pose.Landmark{X: x, Y: 0.5, Visibility: visibility}
		f.Landmarks[wrist] = pose.Landmark{X: x + 0.2*math.Sin(rad), Y: 0.5 - 0.2*math.Cos(rad), Visibility: visibility}
	}
	place(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, 0.3, leftDeg)
	place(pose.RightShoulder, pose.RightElbow, pose.RightWrist, 0.7, rightDeg)
	return f
}

// situpFrame bends both hips to deg.
func situpFrame(deg, visibility float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	place := func(shoulder, hip, knee pose.Joint, y float64) {
		rad := deg * math.Pi / 180
		f.Landmarks[hip] = pose.Landmark{X: 0.5, Y: y, Visibility: visibility}
		f.Landmarks[knee] = pose.Landmark{X: 0.8, Y: y, Visibility: visibility}
		f.Landmarks[shoulder] = pose.Landmark{X: 0.5 + 0.3*math.Cos(rad), Y: y - 0.3*math.Sin(rad), Visibility: visibility}
	}
	place(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, 0.6)
	place(pose.RightShoulder, pose.RightHip, pose.RightKnee, 0.62)
	return f
}

// standingFrame is a 1000x1000 frame with nose at noseY, heels at heelY
// and shoulders shoulderW apart.
func standingFrame(noseY, heelY, shoulderW, visibility float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	lm := func(x, y float64) pose.Landmark { return pose.Landmark{X: x, Y: y, Visibility: visibility} }
	f.Landmarks[pose.Nose] = lm(0.5, noseY)
	f.Landmarks[pose.LeftShoulder] = lm(0.5-shoulderW/2, noseY+0.1)
	f.Landmarks[pose.RightShoulder] = lm(0.5+shoulderW/2, noseY+0.1)
	f.Landmarks[pose.LeftHip] = lm(0.45, (noseY+heelY)/2)
	f.Landmarks[pose.RightHip] = lm(0.55, (noseY+heelY)/2)
	f.Landmarks[pose.LeftHeel] = lm(0.45, heelY)
	f.Landmarks[pose.RightHeel] = lm(0.55, heelY)
	f.Landmarks[pose.LeftAnkle] = lm(0.45, heelY-0.01)
	f.Landmarks[pose.RightAnkle] = lm(0.55, heelY-0.01)
	return f
}

func ptr(v float64) *float64 { return &v }
