package recovery

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"idle to monitoring", StateIdle, StateMonitoring, true},
		{"idle to recovery pending", StateIdle, StateRecoveryPending, false},
		{"monitoring to recovery pending", StateMonitoring, StateRecoveryPending, true},
		{"monitoring to idle", StateMonitoring, StateIdle, true},
		{"monitoring to exhausted", StateMonitoring, StateExhausted, false},
		{"recovery pending to cooldown", StateRecoveryPending, StateCooldown, true},
		{"recovery pending to exhausted", StateRecoveryPending, StateExhausted, true},
		{"recovery pending to idle", StateRecoveryPending, StateIdle, true},
		{"cooldown to recovery pending", StateCooldown, StateRecoveryPending, true},
		{"cooldown to monitoring", StateCooldown, StateMonitoring, true},
		{"cooldown to exhausted", StateCooldown, StateExhausted, false},
		{"exhausted to idle", StateExhausted, StateIdle, true},
		{"exhausted to monitoring", StateExhausted, StateMonitoring, false},
		{"unknown state", State("bogus"), StateIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransitionIsValid(t *testing.T) {
	valid := Transition{From: StateIdle, To: StateMonitoring}
	if !valid.IsValid() {
		t.Error("Expected idle->monitoring to be valid")
	}
	invalid := Transition{From: StateExhausted, To: StateCooldown}
	if invalid.IsValid() {
		t.Error("Expected exhausted->cooldown to be invalid")
	}
}
