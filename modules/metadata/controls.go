package metadata

import "time"

// TemplateKind selects a set of default request controls.
type TemplateKind int

const (
	TemplatePreview TemplateKind = iota
	TemplateStillCapture
	TemplateVideoRecord
	TemplateVideoSnapshot
	TemplateZeroShutterLag
	TemplateManual
)

func (t TemplateKind) String() string {
	switch t {
	case TemplatePreview:
		return "preview"
	case TemplateStillCapture:
		return "still_capture"
	case TemplateVideoRecord:
		return "video_record"
	case TemplateVideoSnapshot:
		return "video_snapshot"
	case TemplateZeroShutterLag:
		return "zero_shutter_lag"
	case TemplateManual:
		return "manual"
	default:
		return "unknown"
	}
}

// CaptureIntent hints what a request is for.
type CaptureIntent uint8

const (
	CaptureIntentCustom CaptureIntent = iota
	CaptureIntentPreview
	CaptureIntentStillCapture
	CaptureIntentVideoRecord
	CaptureIntentVideoSnapshot
	CaptureIntentZeroShutterLag
	CaptureIntentManual
)

// ControlMode selects between full manual, auto and scene-driven control.
type ControlMode uint8

const (
	ControlModeOff ControlMode = iota
	ControlModeAuto
	ControlModeUseSceneMode
)

// AEMode is the auto-exposure mode.
type AEMode uint8

const (
	AEModeOff AEMode = iota
	AEModeOn
	AEModeOnAutoFlash
	AEModeOnAlwaysFlash
)

// AEState is the reported auto-exposure state.
type AEState uint8

const (
	AEStateInactive AEState = iota
	AEStateSearching
	AEStateConverged
	AEStateLocked
	AEStateFlashRequired
	AEStatePrecapture
)

func (s AEState) String() string {
	switch s {
	case AEStateInactive:
		return "inactive"
	case AEStateSearching:
		return "searching"
	case AEStateConverged:
		return "converged"
	case AEStateLocked:
		return "locked"
	case AEStateFlashRequired:
		return "flash_required"
	case AEStatePrecapture:
		return "precapture"
	default:
		return "unknown"
	}
}

// PrecaptureTrigger starts or cancels an AE precapture sequence.
type PrecaptureTrigger uint8

const (
	PrecaptureTriggerIdle PrecaptureTrigger = iota
	PrecaptureTriggerStart
	PrecaptureTriggerCancel
)

// AFMode is the auto-focus mode.
type AFMode uint8

const (
	AFModeOff AFMode = iota
	AFModeAuto
	AFModeMacro
	AFModeContinuousVideo
	AFModeContinuousPicture
	AFModeEDoF
)

// IsContinuous reports whether the lens scans without a trigger.
func (m AFMode) IsContinuous() bool {
	return m == AFModeContinuousVideo || m == AFModeContinuousPicture
}

// AFState is the reported auto-focus state.
type AFState uint8

const (
	AFStateInactive AFState = iota
	AFStatePassiveScan
	AFStatePassiveFocused
	AFStateActiveScan
	AFStateFocusedLocked
	AFStateNotFocusedLocked
	AFStatePassiveUnfocused
)

func (s AFState) String() string {
	switch s {
	case AFStateInactive:
		return "inactive"
	case AFStatePassiveScan:
		return "passive_scan"
	case AFStatePassiveFocused:
		return "passive_focused"
	case AFStateActiveScan:
		return "active_scan"
	case AFStateFocusedLocked:
		return "focused_locked"
	case AFStateNotFocusedLocked:
		return "not_focused_locked"
	case AFStatePassiveUnfocused:
		return "passive_unfocused"
	default:
		return "unknown"
	}
}

// AFTrigger starts or cancels an AF scan.
type AFTrigger uint8

const (
	AFTriggerIdle AFTrigger = iota
	AFTriggerStart
	AFTriggerCancel
)

// AWBMode is the auto-white-balance mode.
type AWBMode uint8

const (
	AWBModeOff AWBMode = iota
	AWBModeAuto
	AWBModeIncandescent
	AWBModeFluorescent
	AWBModeDaylight
	AWBModeCloudyDaylight
)

// AWBState is the reported auto-white-balance state.
type AWBState uint8

const (
	AWBStateInactive AWBState = iota
	AWBStateSearching
	AWBStateConverged
	AWBStateLocked
)

func (s AWBState) String() string {
	switch s {
	case AWBStateInactive:
		return "inactive"
	case AWBStateSearching:
		return "searching"
	case AWBStateConverged:
		return "converged"
	case AWBStateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Controls are the per-request settings a caller submits with a capture
// request. Values are copied into the session; callers may reuse the struct.
type Controls struct {
	CaptureIntent CaptureIntent `yaml:"capture_intent"`
	ControlMode   ControlMode   `yaml:"control_mode"`

	AEMode                 AEMode            `yaml:"ae_mode"`
	AELock                 bool              `yaml:"ae_lock"`
	AEExposureCompensation int32             `yaml:"ae_exposure_compensation"`
	AETargetFPSRange       [2]int32          `yaml:"ae_target_fps_range"`
	AEPrecaptureTrigger    PrecaptureTrigger `yaml:"ae_precapture_trigger"`
	AEPrecaptureID         int32             `yaml:"ae_precapture_id"`

	AFMode      AFMode    `yaml:"af_mode"`
	AFTrigger   AFTrigger `yaml:"af_trigger"`
	AFTriggerID int32     `yaml:"af_trigger_id"`

	AWBMode AWBMode `yaml:"awb_mode"`
	AWBLock bool    `yaml:"awb_lock"`

	// Manual sensor controls, honoured when AEMode is AEModeOff.
	ExposureTime  time.Duration `yaml:"exposure_time"`
	Sensitivity   int32         `yaml:"sensitivity"`
	FrameDuration time.Duration `yaml:"frame_duration"`

	CropRegion Rect `yaml:"crop_region"`

	JPEGQuality     uint8 `yaml:"jpeg_quality"`
	JPEGOrientation int32 `yaml:"jpeg_orientation"`
}

// SensorReport is what the device says about a captured frame: the applied
// exposure and the raw 3A convergence hints.
type SensorReport struct {
	ExposureTime  time.Duration
	Sensitivity   int32
	FrameDuration time.Duration
	FocusDistance float32

	AEConverged  bool
	AFFocused    bool
	AWBConverged bool
}

// ResultMetadata is synthesized per frame by the capture worker.
type ResultMetadata struct {
	SensorTimestamp time.Time     `json:"sensor_timestamp"`
	ExposureTime    time.Duration `json:"exposure_time"`
	Sensitivity     int32         `json:"sensitivity"`
	FrameDuration   time.Duration `json:"frame_duration"`
	FocalLength     float32       `json:"focal_length"`
	FocusDistance   float32       `json:"focus_distance"`

	CaptureIntent CaptureIntent `json:"capture_intent"`
	ControlMode   ControlMode   `json:"control_mode"`

	AEMode         AEMode   `json:"ae_mode"`
	AEState        AEState  `json:"ae_state"`
	AEPrecaptureID int32    `json:"ae_precapture_id"`
	AFMode         AFMode   `json:"af_mode"`
	AFState        AFState  `json:"af_state"`
	AFTriggerID    int32    `json:"af_trigger_id"`
	AWBMode        AWBMode  `json:"awb_mode"`
	AWBState       AWBState `json:"awb_state"`

	CropRegion      Rect  `json:"crop_region"`
	JPEGQuality     uint8 `json:"jpeg_quality,omitempty"`
	JPEGOrientation int32 `json:"jpeg_orientation,omitempty"`

	PipelineDepth uint8 `json:"pipeline_depth"`
}
