package arm

import "errors"

// Preset postures. Pickup is sequenced: the gripper opens fully before the
// reach begins so the claw never plows closed into the target object.
const (
	PresetPickup = 1
	PresetPlace  = 2
	PresetRest   = 3
	PresetExtend = 4
	PresetCarry  = 5
)

// ErrUnknownPreset is returned for preset numbers with no posture bound.
var ErrUnknownPreset = errors.New("unknown preset")

// homePose is the boot and reset posture.
var homePose = presetStep{
	Base:        90,
	Shoulder:    90,
	Elbow:       90,
	WristRotate: 90,
	WristTilt:   40,
	Gripper:     90,
}

var presets = map[int][]presetStep{
	PresetPickup: {
		{Gripper: gripperOpenAngle},
		{Base: 90, Shoulder: 60, Elbow: 60, Gripper: gripperOpenAngle},
	},
	PresetPlace: {
		{Base: 90, Shoulder: 90, Elbow: 90},
	},
	PresetRest: {
		{Base: 90, Shoulder: 150, Elbow: 150},
	},
	PresetExtend: {
		{Base: 90, Shoulder: 45, Elbow: 170, WristTilt: 90},
	},
	PresetCarry: {
		{Shoulder: 120, Elbow: 45, WristTilt: 90, Gripper: gripperClosedAngle},
	},
}

// MoveToHome retargets every joint to the boot posture.
func (a *Arm) MoveToHome() error {
	if !a.enabled {
		return ErrDisabled
	}
	a.pending = nil
	a.applyStep(homePose)
	a.log.Info("moving arm to home position")
	return nil
}

// ExecutePreset starts the numbered posture. Sequenced presets run one
// step per arrival: the next step's targets load once every joint named by
// the active step has reached its target.
func (a *Arm) ExecutePreset(id int) error {
	if !a.enabled {
		return ErrDisabled
	}
	steps, ok := presets[id]
	if !ok {
		return ErrUnknownPreset
	}
	a.pending = append([]presetStep(nil), steps...)
	a.applyStep(a.pending[0])
	a.log.Info("executing arm preset", "preset", id, "steps", len(steps))
	return nil
}

// applyStep loads a step's targets, skipping any joint the posture guard
// rejects so one bad joint cannot abort the rest of the posture.
func (a *Arm) applyStep(step presetStep) {
	for j, angle := range step {
		if err := a.SetAngle(j, angle); err != nil {
			a.log.Warn("preset joint rejected", "joint", j.String(), "error", err)
		}
	}
}

// advanceSequence pops the head step once its joints have all arrived and
// loads the next one.
func (a *Arm) advanceSequence() {
	if len(a.pending) == 0 {
		return
	}
	for j := range a.pending[0] {
		if a.joints[j].Current != a.joints[j].Target {
			return
		}
	}
	a.pending = a.pending[1:]
	if len(a.pending) > 0 {
		a.applyStep(a.pending[0])
	}
}

// SequenceActive reports whether a preset sequence still has steps to run.
func (a *Arm) SequenceActive() bool {
	return len(a.pending) > 0
}
