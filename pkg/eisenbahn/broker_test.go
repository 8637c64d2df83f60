package eisenbahn_test

import (
	"context"
	"testing"
	"time"

	"github.com/stupid-db/stupid-db/pkg/eisenbahn"
)

func TestBrokerForwardsPubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frontend := eisenbahn.TCP("127.0.0.1", 16540)
	backend := eisenbahn.TCP("127.0.0.1", 16541)
	broker := eisenbahn.NewBroker(eisenbahn.BrokerOptions{
		Frontend: frontend,
		Backend:  backend,
	})
	go broker.Run(ctx)
	defer broker.Shutdown()
	time.Sleep(settle)

	sub, err := eisenbahn.NewSubscriber(ctx, backend)
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}
	defer sub.Close()
	if err := sub.Subscribe("eisenbahn.anomaly."); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	time.Sleep(settle)

	pub, err := eisenbahn.NewPublisher(ctx, frontend)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer pub.Close()
	time.Sleep(settle)

	// A message on an unsubscribed topic is filtered out; the matching
	// one arrives.
	if err := pub.PublishEvent(eisenbahn.TopicIngestComplete, eisenbahn.IngestComplete{Source: "x"}); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	want := eisenbahn.AnomalyDetected{RuleID: "r-1", EntityID: "e-1", Score: 0.9}
	if err := pub.PublishEvent(eisenbahn.TopicAnomalyDetected, want); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	type recvResult struct {
		msg eisenbahn.Message
		err error
	}
	recvCh := make(chan recvResult, 1)
	go func() {
		msg, err := sub.Recv()
		recvCh <- recvResult{msg: msg, err: err}
	}()

	select {
	case r := <-recvCh:
		if r.err != nil {
			t.Fatalf("Recv: %v", r.err)
		}
		if r.msg.Topic != eisenbahn.TopicAnomalyDetected {
			t.Fatalf("Topic = %q", r.msg.Topic)
		}
		var got eisenbahn.AnomalyDetected
		if err := r.msg.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != want {
			t.Fatalf("payload = %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}
}

func TestPipelineRoundRobin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stage := eisenbahn.TCP("127.0.0.1", 16550)

	sender, err := eisenbahn.NewPipelineSender(ctx, stage)
	if err != nil {
		t.Fatalf("NewPipelineSender: %v", err)
	}
	defer sender.Close()
	time.Sleep(settle)

	receiver, err := eisenbahn.NewPipelineReceiver(ctx, stage)
	if err != nil {
		t.Fatalf("NewPipelineReceiver: %v", err)
	}
	defer receiver.Close()
	time.Sleep(settle)

	batch := eisenbahn.IngestBatch{Records: []eisenbahn.Record{
		{ID: "r-1", EventType: "Login", Fields: map[string]string{"memberId": "alice"}},
	}}
	msg, err := eisenbahn.NewMessage(eisenbahn.TopicPipelineIngest, batch)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := sender.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := receiver.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.CorrelationID != msg.CorrelationID {
		t.Fatal("correlation mismatch through pipeline")
	}
	var decoded eisenbahn.IngestBatch
	if err := got.Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Records) != 1 || decoded.Records[0].ID != "r-1" {
		t.Fatalf("records = %+v", decoded.Records)
	}
}
