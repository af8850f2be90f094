package internal

import "github.com/e7canasta/orion-care-sensor/modules/metadata"

// autoControlState tracks 3A for the session's device. Only the worker
// touches it, with the session lock held.
type autoControlState struct {
	aeMode   metadata.AEMode
	aeState  metadata.AEState
	afMode   metadata.AFMode
	afState  metadata.AFState
	awbMode  metadata.AWBMode
	awbState metadata.AWBState

	aePrecaptureID int32
	afTriggerID    int32
	precapturing   bool
}

// update advances 3A with the request controls and what the sensor reported
// for the frame.
func (a *autoControlState) update(c metadata.Controls, r metadata.SensorReport) {
	manual := c.ControlMode == metadata.ControlModeOff
	a.updateAE(c, r, manual)
	a.updateAF(c, r, manual)
	a.updateAWB(c, r, manual)
}

func (a *autoControlState) updateAE(c metadata.Controls, r metadata.SensorReport, manual bool) {
	if c.AEMode != a.aeMode {
		a.aeMode = c.AEMode
		a.aeState = metadata.AEStateInactive
		a.precapturing = false
	}
	if manual || c.AEMode == metadata.AEModeOff {
		a.aeState = metadata.AEStateInactive
		a.precapturing = false
		return
	}

	switch c.AEPrecaptureTrigger {
	case metadata.PrecaptureTriggerStart:
		a.aePrecaptureID = c.AEPrecaptureID
		a.precapturing = true
		a.aeState = metadata.AEStatePrecapture
		return
	case metadata.PrecaptureTriggerCancel:
		a.aePrecaptureID = c.AEPrecaptureID
		a.precapturing = false
	}

	switch {
	case c.AELock:
		a.aeState = metadata.AEStateLocked
	case a.precapturing && !r.AEConverged:
		a.aeState = metadata.AEStatePrecapture
	case r.AEConverged:
		a.precapturing = false
		a.aeState = metadata.AEStateConverged
	default:
		a.aeState = metadata.AEStateSearching
	}
}

func (a *autoControlState) updateAF(c metadata.Controls, r metadata.SensorReport, manual bool) {
	if c.AFMode != a.afMode {
		a.afMode = c.AFMode
		a.afState = metadata.AFStateInactive
	}
	if c.AFTrigger != metadata.AFTriggerIdle {
		a.afTriggerID = c.AFTriggerID
	}
	if manual || c.AFMode == metadata.AFModeOff || c.AFMode == metadata.AFModeEDoF {
		a.afState = metadata.AFStateInactive
		return
	}

	locked := func() metadata.AFState {
		if r.AFFocused {
			return metadata.AFStateFocusedLocked
		}
		return metadata.AFStateNotFocusedLocked
	}

	if c.AFMode.IsContinuous() {
		switch c.AFTrigger {
		case metadata.AFTriggerStart:
			a.afState = locked()
		case metadata.AFTriggerCancel:
			a.afState = metadata.AFStateInactive
		default:
			if a.afState == metadata.AFStateFocusedLocked || a.afState == metadata.AFStateNotFocusedLocked {
				return
			}
			if r.AFFocused {
				a.afState = metadata.AFStatePassiveFocused
			} else {
				a.afState = metadata.AFStatePassiveScan
			}
		}
		return
	}

	// auto, macro
	switch c.AFTrigger {
	case metadata.AFTriggerStart:
		a.afState = metadata.AFStateActiveScan
	case metadata.AFTriggerCancel:
		a.afState = metadata.AFStateInactive
	default:
		if a.afState == metadata.AFStateActiveScan {
			a.afState = locked()
		}
	}
}

func (a *autoControlState) updateAWB(c metadata.Controls, r metadata.SensorReport, manual bool) {
	if c.AWBMode != a.awbMode {
		a.awbMode = c.AWBMode
		a.awbState = metadata.AWBStateInactive
	}
	switch {
	case manual || c.AWBMode == metadata.AWBModeOff:
		a.awbState = metadata.AWBStateInactive
	case c.AWBLock:
		a.awbState = metadata.AWBStateLocked
	case r.AWBConverged:
		a.awbState = metadata.AWBStateConverged
	default:
		a.awbState = metadata.AWBStateSearching
	}
}

// apply copies the current 3A snapshot into md.
func (a *autoControlState) apply(md *metadata.ResultMetadata) {
	md.AEMode = a.aeMode
	md.AEState = a.aeState
	md.AEPrecaptureID = a.aePrecaptureID
	md.AFMode = a.afMode
	md.AFState = a.afState
	md.AFTriggerID = a.afTriggerID
	md.AWBMode = a.awbMode
	md.AWBState = a.awbState
}
