package gset

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/wire"
)

func TestMergeIdempotent(t *testing.T) {
	e := NewEngine(0, common.NewTestEntry(t))

	e.Add(1)
	e.Add(1)
	e.MergeOne(1)
	e.MergeFull([]int64{1, 1})

	expected := []int64{1}
	if !reflect.DeepEqual(e.Snapshot(), expected) {
		t.Fatalf("Snapshot should be %v, not %v", expected, e.Snapshot())
	}
}

func TestMergeCommutative(t *testing.T) {
	a := []int64{1, 2, 3}
	b := []int64{3, 4, 5}

	e1 := NewEngine(0, common.NewTestEntry(t))
	e1.MergeFull(a)
	e1.MergeFull(b)

	e2 := NewEngine(0, common.NewTestEntry(t))
	e2.MergeFull(b)
	e2.MergeFull(a)

	if !reflect.DeepEqual(e1.Snapshot(), e2.Snapshot()) {
		t.Fatalf("merge order should not matter: %v vs %v", e1.Snapshot(), e2.Snapshot())
	}

	expected := []int64{1, 2, 3, 4, 5}
	if !reflect.DeepEqual(e1.Snapshot(), expected) {
		t.Fatalf("Snapshot should be %v, not %v", expected, e1.Snapshot())
	}
}

func TestSnapshotEmptyNotNil(t *testing.T) {
	e := NewEngine(0, common.NewTestEntry(t))

	snapshot := e.Snapshot()
	if snapshot == nil {
		t.Fatal("Snapshot should never be nil")
	}
	if len(snapshot) != 0 {
		t.Fatalf("Snapshot of a fresh engine should be empty, not %v", snapshot)
	}
}

func TestDefaultInterval(t *testing.T) {
	e := NewEngine(0, common.NewTestEntry(t))
	if e.interval != DefaultAntiEntropyInterval {
		t.Fatalf("interval should default to %v, not %v", DefaultAntiEntropyInterval, e.interval)
	}
}

func connectAll(transports ...*net.InmemTransport) {
	for _, a := range transports {
		for _, b := range transports {
			if a != b {
				a.Connect(b.LocalAddr(), b)
			}
		}
	}
}

func startNode(t *testing.T, id string, interval time.Duration) (*node.Node, *net.InmemTransport) {
	t.Helper()
	trans := net.NewInmemTransport(id)
	e := NewEngine(interval, common.NewTestEntry(t))
	n := node.NewNode(trans, e, common.NewTestEntry(t))
	n.RunAsync()
	t.Cleanup(n.Shutdown)
	return n, trans
}

func sendBody(t *testing.T, client *net.InmemTransport, dest string, body map[string]interface{}) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Send(wire.Message{
		Src:  client.LocalAddr(),
		Dest: dest,
		Body: buf,
	}); err != nil {
		t.Fatal(err)
	}
}

func awaitReply(t *testing.T, client *net.InmemTransport, msgID int) (wire.Message, wire.Body) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-client.Consumer():
			var body wire.Body
			if err := json.Unmarshal(msg.Body, &body); err != nil {
				t.Fatal(err)
			}
			if body.InReplyTo == msgID {
				return msg, body
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reply to msg_id %d", msgID)
		}
	}
}

func initNode(t *testing.T, client *net.InmemTransport, id string, ids []string, msgID int) {
	t.Helper()
	sendBody(t, client, id, map[string]interface{}{
		"type":     "init",
		"msg_id":   msgID,
		"node_id":  id,
		"node_ids": ids,
	})
	if _, body := awaitReply(t, client, msgID); body.Type != "init_ok" {
		t.Fatalf("reply to init should be init_ok, not %q", body.Type)
	}
}

func TestAddAndRead(t *testing.T) {
	_, trans := startNode(t, "n1", time.Hour)
	client := net.NewInmemTransport("c1")
	connectAll(trans, client)

	initNode(t, client, "n1", []string{"n1"}, 1)

	sendBody(t, client, "n1", map[string]interface{}{"type": "add", "msg_id": 2, "element": 5})
	if _, body := awaitReply(t, client, 2); body.Type != "add_ok" {
		t.Fatalf("reply should be add_ok, not %q", body.Type)
	}

	sendBody(t, client, "n1", map[string]interface{}{"type": "read", "msg_id": 3})
	msg, body := awaitReply(t, client, 3)
	if body.Type != "read_ok" {
		t.Fatalf("reply should be read_ok, not %q", body.Type)
	}

	var parsed readOKBody
	if err := json.Unmarshal(msg.Body, &parsed); err != nil {
		t.Fatal(err)
	}
	expected := []int64{5}
	if !reflect.DeepEqual(parsed.Value, expected) {
		t.Fatalf("read value should be %v, not %v", expected, parsed.Value)
	}
}

func TestReplicateNoReply(t *testing.T) {
	_, trans := startNode(t, "n1", time.Hour)
	client := net.NewInmemTransport("c1")
	connectAll(trans, client)

	initNode(t, client, "n1", []string{"n1"}, 1)

	// Peer-to-peer merges are not acknowledged.
	sendBody(t, client, "n1", map[string]interface{}{"type": "replicate_one", "msg_id": 2, "element": 9})
	sendBody(t, client, "n1", map[string]interface{}{"type": "replicate_full", "msg_id": 3, "value": []int64{4, 9}})

	select {
	case msg := <-client.Consumer():
		var body wire.Body
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			t.Fatal(err)
		}
		if body.InReplyTo == 2 || body.InReplyTo == 3 {
			t.Fatalf("replicate messages should not be answered, got %s", msg.Body)
		}
	case <-time.After(200 * time.Millisecond):
	}

	// But they are merged.
	sendBody(t, client, "n1", map[string]interface{}{"type": "read", "msg_id": 4})
	msg, _ := awaitReply(t, client, 4)

	var parsed readOKBody
	if err := json.Unmarshal(msg.Body, &parsed); err != nil {
		t.Fatal(err)
	}
	expected := []int64{4, 9}
	if !reflect.DeepEqual(parsed.Value, expected) {
		t.Fatalf("read value should be %v, not %v", expected, parsed.Value)
	}
}

func TestConvergence(t *testing.T) {
	_, trans1 := startNode(t, "n1", 50*time.Millisecond)
	_, trans2 := startNode(t, "n2", 50*time.Millisecond)
	client := net.NewInmemTransport("c1")
	connectAll(trans1, trans2, client)

	ids := []string{"n1", "n2"}
	initNode(t, client, "n1", ids, 1)
	initNode(t, client, "n2", ids, 2)

	msgID := 3
	for _, el := range []int64{7, 9} {
		sendBody(t, client, "n1", map[string]interface{}{"type": "add", "msg_id": msgID, "element": el})
		if _, body := awaitReply(t, client, msgID); body.Type != "add_ok" {
			t.Fatalf("reply should be add_ok, not %q", body.Type)
		}
		msgID++
	}

	// n2 never saw the adds; replication carries them over.
	expected := []int64{7, 9}
	deadline := time.Now().Add(2 * time.Second)
	for {
		sendBody(t, client, "n2", map[string]interface{}{"type": "read", "msg_id": msgID})
		msg, _ := awaitReply(t, client, msgID)
		msgID++

		var parsed readOKBody
		if err := json.Unmarshal(msg.Body, &parsed); err != nil {
			t.Fatal(err)
		}
		if reflect.DeepEqual(parsed.Value, expected) {
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("n2 should converge to %v, last read %v", expected, parsed.Value)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
