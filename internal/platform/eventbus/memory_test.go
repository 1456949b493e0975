package eventbus

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var got []PatientDischarged
	err := bus.Subscribe(ctx, ChannelPatientDischarged, func(ctx context.Context, payload []byte) {
		var ev PatientDischarged
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Errorf("unmarshal: %v", err)
			return
		}
		got = append(got, ev)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := PatientDischarged{PatientID: "p1", ConsultationID: "c1"}
	if err := bus.Publish(ctx, ChannelPatientDischarged, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].PatientID != "p1" || got[0].ConsultationID != "c1" {
		t.Errorf("unexpected payload: %+v", got[0])
	}
}

func TestMemoryBus_PublishWithoutSubscribersRecords(t *testing.T) {
	bus := NewMemoryBus()

	err := bus.Publish(context.Background(), ChannelFollowupFlagged, FollowupFlagged{
		PatientID: "p1", RiskScore: 0.8, RiskLabel: "HIGH", FollowupID: "f1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	payloads := bus.OnChannel(ChannelFollowupFlagged)
	if len(payloads) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(payloads))
	}

	var ev FollowupFlagged
	if err := json.Unmarshal(payloads[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.RiskLabel != "HIGH" {
		t.Errorf("expected HIGH, got %s", ev.RiskLabel)
	}
}

func TestMemoryBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := NewMemoryBus()
	bus.Close()

	if err := bus.Publish(context.Background(), ChannelPainScored, PainScored{PatientID: "p1"}); err == nil {
		t.Error("expected error publishing on closed bus")
	}
	if err := bus.Subscribe(context.Background(), ChannelPainScored, func(context.Context, []byte) {}); err == nil {
		t.Error("expected error subscribing on closed bus")
	}
}
