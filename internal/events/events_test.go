package events

import (
	"testing"

	"github.com/google/uuid"
)

type fakeController struct {
	pausedAll  bool
	resumedAll bool
	paused     []string
	resumed    []string
	confirmed  []uuid.UUID
	cleared    bool
}

func (f *fakeController) PauseAll()  { f.pausedAll = true }
func (f *fakeController) ResumeAll() { f.resumedAll = true }
func (f *fakeController) PauseFlowcell(fc string) error {
	f.paused = append(f.paused, fc)
	return nil
}
func (f *fakeController) ResumeFlowcell(fc string) error {
	f.resumed = append(f.resumed, fc)
	return nil
}
func (f *fakeController) Confirm(id uuid.UUID) error {
	f.confirmed = append(f.confirmed, id)
	return nil
}
func (f *fakeController) ClearAll() int {
	f.cleared = true
	return 0
}

func controlMessage(p ControlPayload) *Message {
	return &Message{ID: uuid.New().String(), Type: "control", Payload: p}
}

func TestApplyControl(t *testing.T) {
	taskID := uuid.New()

	tests := []struct {
		name    string
		payload ControlPayload
		check   func(*fakeController) bool
	}{
		{"pause all", ControlPayload{Action: ActionPause},
			func(f *fakeController) bool { return f.pausedAll }},
		{"pause flowcell", ControlPayload{Action: ActionPause, Flowcell: "A"},
			func(f *fakeController) bool { return len(f.paused) == 1 && f.paused[0] == "A" }},
		{"resume all", ControlPayload{Action: ActionResume},
			func(f *fakeController) bool { return f.resumedAll }},
		{"resume flowcell", ControlPayload{Action: ActionResume, Flowcell: "B"},
			func(f *fakeController) bool { return len(f.resumed) == 1 && f.resumed[0] == "B" }},
		{"confirm", ControlPayload{Action: ActionConfirm, TaskID: taskID},
			func(f *fakeController) bool { return len(f.confirmed) == 1 && f.confirmed[0] == taskID }},
		{"clear", ControlPayload{Action: ActionClear},
			func(f *fakeController) bool { return f.cleared }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			if err := ApplyControl(ctrl, controlMessage(tt.payload)); err != nil {
				t.Fatalf("ApplyControl: %v", err)
			}
			if !tt.check(ctrl) {
				t.Errorf("action not applied: %+v", ctrl)
			}
		})
	}
}

func TestApplyControlUnknownAction(t *testing.T) {
	if err := ApplyControl(&fakeController{}, controlMessage(ControlPayload{Action: "reboot"})); err == nil {
		t.Fatal("unknown action must be rejected")
	}
}

func TestParsePayload(t *testing.T) {
	msg := controlMessage(ControlPayload{Action: ActionPause, Flowcell: "A"})

	// Payload проходит через JSON, как при доставке из брокера.
	payload, err := ParsePayload[ControlPayload](msg)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.Action != ActionPause || payload.Flowcell != "A" {
		t.Errorf("payload = %+v", payload)
	}
}
