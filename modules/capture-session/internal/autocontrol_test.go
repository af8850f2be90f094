package internal

import (
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

func autoControls() metadata.Controls {
	return metadata.Controls{
		ControlMode: metadata.ControlModeAuto,
		AEMode:      metadata.AEModeOn,
		AFMode:      metadata.AFModeContinuousPicture,
		AWBMode:     metadata.AWBModeAuto,
	}
}

func TestAutoControlConvergence(t *testing.T) {
	var a autoControlState

	searching := metadata.SensorReport{}
	converged := metadata.SensorReport{AEConverged: true, AFFocused: true, AWBConverged: true}

	a.update(autoControls(), searching)
	if a.aeState != metadata.AEStateSearching || a.awbState != metadata.AWBStateSearching || a.afState != metadata.AFStatePassiveScan {
		t.Fatalf("first frame: ae=%s af=%s awb=%s", a.aeState, a.afState, a.awbState)
	}

	a.update(autoControls(), converged)
	if a.aeState != metadata.AEStateConverged || a.awbState != metadata.AWBStateConverged || a.afState != metadata.AFStatePassiveFocused {
		t.Fatalf("converged frame: ae=%s af=%s awb=%s", a.aeState, a.afState, a.awbState)
	}
}

func TestAutoControlLocks(t *testing.T) {
	var a autoControlState
	c := autoControls()
	c.AELock = true
	c.AWBLock = true

	a.update(c, metadata.SensorReport{})
	if a.aeState != metadata.AEStateLocked || a.awbState != metadata.AWBStateLocked {
		t.Errorf("locks: ae=%s awb=%s", a.aeState, a.awbState)
	}
}

func TestAutoControlPrecapture(t *testing.T) {
	var a autoControlState
	c := autoControls()
	c.AEPrecaptureTrigger = metadata.PrecaptureTriggerStart
	c.AEPrecaptureID = 42

	a.update(c, metadata.SensorReport{AEConverged: true})
	if a.aeState != metadata.AEStatePrecapture || a.aePrecaptureID != 42 {
		t.Fatalf("trigger frame: state=%s id=%d", a.aeState, a.aePrecaptureID)
	}

	c.AEPrecaptureTrigger = metadata.PrecaptureTriggerIdle
	a.update(c, metadata.SensorReport{})
	if a.aeState != metadata.AEStatePrecapture {
		t.Errorf("still metering: state=%s", a.aeState)
	}

	a.update(c, metadata.SensorReport{AEConverged: true})
	if a.aeState != metadata.AEStateConverged {
		t.Errorf("after convergence: state=%s", a.aeState)
	}

	var md metadata.ResultMetadata
	a.apply(&md)
	if md.AEPrecaptureID != 42 {
		t.Errorf("precapture id not echoed: %d", md.AEPrecaptureID)
	}
}

func TestAutoControlAFTriggers(t *testing.T) {
	tests := []struct {
		name    string
		mode    metadata.AFMode
		focused bool
		// states after: trigger start frame, next idle frame
		want [2]metadata.AFState
	}{
		{"auto focused", metadata.AFModeAuto, true, [2]metadata.AFState{metadata.AFStateActiveScan, metadata.AFStateFocusedLocked}},
		{"auto not focused", metadata.AFModeAuto, false, [2]metadata.AFState{metadata.AFStateActiveScan, metadata.AFStateNotFocusedLocked}},
		{"continuous focused", metadata.AFModeContinuousPicture, true, [2]metadata.AFState{metadata.AFStateFocusedLocked, metadata.AFStateFocusedLocked}},
		{"continuous not focused", metadata.AFModeContinuousVideo, false, [2]metadata.AFState{metadata.AFStateNotFocusedLocked, metadata.AFStateNotFocusedLocked}},
		{"edof ignores trigger", metadata.AFModeEDoF, true, [2]metadata.AFState{metadata.AFStateInactive, metadata.AFStateInactive}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a autoControlState
			c := autoControls()
			c.AFMode = tt.mode
			report := metadata.SensorReport{AFFocused: tt.focused}

			c.AFTrigger = metadata.AFTriggerStart
			c.AFTriggerID = 7
			a.update(c, report)
			if a.afState != tt.want[0] {
				t.Errorf("trigger frame: %s, want %s", a.afState, tt.want[0])
			}

			c.AFTrigger = metadata.AFTriggerIdle
			a.update(c, report)
			if a.afState != tt.want[1] {
				t.Errorf("idle frame: %s, want %s", a.afState, tt.want[1])
			}
			if a.afTriggerID != 7 {
				t.Errorf("trigger id = %d, want 7", a.afTriggerID)
			}

			c.AFTrigger = metadata.AFTriggerCancel
			a.update(c, report)
			if a.afState != metadata.AFStateInactive {
				t.Errorf("cancel: %s, want inactive", a.afState)
			}
		})
	}
}

func TestAutoControlManual(t *testing.T) {
	var a autoControlState
	c := autoControls()
	a.update(c, metadata.SensorReport{AEConverged: true, AWBConverged: true})

	c.ControlMode = metadata.ControlModeOff
	a.update(c, metadata.SensorReport{AEConverged: true, AFFocused: true, AWBConverged: true})
	if a.aeState != metadata.AEStateInactive || a.afState != metadata.AFStateInactive || a.awbState != metadata.AWBStateInactive {
		t.Errorf("manual: ae=%s af=%s awb=%s", a.aeState, a.afState, a.awbState)
	}
}
