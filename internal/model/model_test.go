package model

import "testing"

func TestAckStateString(t *testing.T) {
	tests := []struct {
		ack  AckState
		want string
	}{
		{AckFailed, "failed"},
		{AckPending, "pending"},
		{AckServer, "server"},
		{AckDelivered, "delivered"},
		{AckRead, "read"},
		{AckPlayed, "played"},
		{AckState(9), "ack(9)"},
	}
	for _, tt := range tests {
		if got := tt.ack.String(); got != tt.want {
			t.Errorf("AckState(%d).String() = %q, want %q", int(tt.ack), got, tt.want)
		}
	}
}
