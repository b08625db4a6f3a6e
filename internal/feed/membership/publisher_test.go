package membership

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/google/go-cmp/cmp"
)

func TestPublish_KeyedByRecordID(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	mp := mocks.NewAsyncProducer(t, cfg)

	var got []Event
	check := func(val []byte) error {
		var ev Event
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		got = append(got, ev)
		return nil
	}
	mp.ExpectInputWithCheckerFunctionAndSucceed(check)
	mp.ExpectInputWithCheckerFunctionAndSucceed(check)

	p := newWithProducer(mp, "layer-memberships", 4, nil)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if !p.Publish(Event{RecordID: "a", Layers: []string{"boreholes"}, RegistryVersion: "v1", TS: ts}) {
		t.Fatalf("publish a dropped")
	}
	if !p.Publish(Event{RecordID: "b", RegistryVersion: "v1", TS: ts}) {
		t.Fatalf("publish b dropped")
	}

	// drain successes so the mock does not block
	go func() {
		for range mp.Successes() {
		}
	}()

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []Event{
		{RecordID: "a", Layers: []string{"boreholes"}, RegistryVersion: "v1", TS: ts},
		{RecordID: "b", RegistryVersion: "v1", TS: ts},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if !got[1].Unmapped() {
		t.Fatalf("second event should be unmapped")
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p := &Publisher{topic: "t", events: make(chan Event, 1), prod: mp}

	if !p.Publish(Event{RecordID: "a"}) {
		t.Fatalf("first publish should be queued")
	}
	if p.Publish(Event{RecordID: "b"}) {
		t.Fatalf("second publish should be dropped")
	}
	_ = mp.Close()
}

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p := newWithProducer(mp, "layer-memberships", 4, nil)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if p.Publish(Event{RecordID: "late", Layers: []string{"boreholes"}}) {
		t.Fatalf("publish after close should be dropped")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
