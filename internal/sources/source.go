// Package sources implements the Source Registry: a stateless catalog of
// video sources consulted at stream creation time.
package sources

// Kind tags the SourceRef variant.
type Kind string

const (
	KindLocal    Kind = "local"
	KindGst      Kind = "gst"
	KindFile     Kind = "file"
	KindRedirect Kind = "redirect"
)

// Encode identifies the codec/pixel format a CaptureConfig targets.
type Encode string

const (
	EncodeH264    Encode = "H264"
	EncodeH265    Encode = "H265"
	EncodeMJPG    Encode = "MJPG"
	EncodeYUYV    Encode = "YUYV"
	EncodeUnknown Encode = ""
)

// FrameInterval is a num/den frame interval in seconds per frame (1/30 for
// 30 fps); the Pipeline Builder inverts it into the pipeline's
// `framerate=den/num` fragment.
type FrameInterval struct {
	Numerator   uint32
	Denominator uint32
}

// CaptureConfig is the `{encode, width, height, frame_interval}` tuple named
// in the data model. UnknownEncode carries the raw string when Encode is
// EncodeUnknown, so the Pipeline Builder can report which name was rejected.
type CaptureConfig struct {
	Encode        Encode
	UnknownEncode string
	Width         uint32
	Height        uint32
	FrameInterval FrameInterval
}

// ControlKind is one of the three V4L2 control shapes recovered from the
// original implementation's control model.
type ControlKind string

const (
	ControlBool   ControlKind = "bool"
	ControlSlider ControlKind = "slider"
	ControlMenu   ControlKind = "menu"
)

// ControlOption is one menu entry of a ControlMenu control.
type ControlOption struct {
	Value int
	Name  string
}

// ControlState describes one controllable parameter of a Local source
// (brightness, contrast, a menu-valued power-line-frequency setting, ...)
// along with its current value, surfaced so callers can discover what
// SetControl accepts before calling it.
type ControlState struct {
	ID      string
	Name    string
	Kind    ControlKind
	Value   int
	Min     int
	Max     int
	Step    int
	Options []ControlOption
}

// Ref is the tagged-variant SourceRef of the data model: Local, Gst, File,
// or Redirect. Only Local, Gst, and File produce encode pipelines; Redirect
// advertises an externally-served URL.
type Ref struct {
	Kind Kind
	Name string

	// Local
	DevicePath string
	Controls   []ControlState

	// Gst
	Pattern string

	// File
	FilePath    string
	FileCapture *CaptureConfig

	// Redirect
	RedirectURL string
}

// String renders the canonical source string used as the lookup key for
// Get and as the persisted `source` field, mirroring the original's
// `device_path` / `pattern` / `path` / `url` per-variant representation.
func (r Ref) String() string {
	switch r.Kind {
	case KindLocal:
		return r.DevicePath
	case KindGst:
		return r.Pattern
	case KindFile:
		return r.FilePath
	case KindRedirect:
		return r.RedirectURL
	default:
		return r.Name
	}
}
