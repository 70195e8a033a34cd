package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/wire"
)

type nopApp struct{}

func (a *nopApp) Startup(n *node.Node) error { return nil }

func (a *nopApp) Process(n *node.Node, msg wire.Message) error { return nil }

func (a *nopApp) Stats() map[string]string { return map[string]string{"app": "nop"} }

func startInitialisedNode(t *testing.T) *node.Node {
	t.Helper()

	trans := net.NewInmemTransport("n1")
	client := net.NewInmemTransport("c1")
	trans.Connect("c1", client)
	client.Connect("n1", trans)

	n := node.NewNode(trans, &nopApp{}, common.NewTestEntry(t))
	n.RunAsync()
	t.Cleanup(n.Shutdown)

	body, err := json.Marshal(map[string]interface{}{
		"type":     "init",
		"msg_id":   1,
		"node_id":  "n1",
		"node_ids": []string{"n1", "n2", "n3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Send(wire.Message{Src: "c1", Dest: "n1", Body: body}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-client.Consumer():
		if msg.Type() != "init_ok" {
			t.Fatalf("reply should be init_ok, not %q", msg.Type())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for init_ok")
	}

	return n
}

func TestServiceStats(t *testing.T) {
	n := startInitialisedNode(t)

	service := NewService("127.0.0.1:0", n, common.NewTestEntry(t))
	server := httptest.NewServer(service.mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	stats := make(map[string]string)
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}

	if stats["id"] != "n1" {
		t.Fatalf("stats id should be n1, not %q", stats["id"])
	}
	if stats["app"] != "nop" {
		t.Fatal("workload stats should be merged in")
	}
}

func TestServicePeers(t *testing.T) {
	n := startInitialisedNode(t)

	service := NewService("127.0.0.1:0", n, common.NewTestEntry(t))
	server := httptest.NewServer(service.mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/peers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var peers []string
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		t.Fatal(err)
	}

	expected := []string{"n2", "n3"}
	if !reflect.DeepEqual(peers, expected) {
		t.Fatalf("peers should be %v, not %v", expected, peers)
	}
}

func TestServiceMetrics(t *testing.T) {
	n := startInitialisedNode(t)

	service := NewService("127.0.0.1:0", n, common.NewTestEntry(t))
	server := httptest.NewServer(service.mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics endpoint should answer 200, not %d", resp.StatusCode)
	}
}
